// Package e2e provides end-to-end tests with a large corpus and multiple queries.
package e2e

import (
	"fmt"

	"github.com/hyperjump/kioku/pkg/utils"
)

// CorpusDimensions is the embedding width every corpus document uses.
const CorpusDimensions = 8

// CorpusDocument is a document entry in the E2E corpus (content plus its
// embedding).
type CorpusDocument struct {
	Content   string
	Embedding []float32
}

// QueryTestCase defines a query embedding and the document content that must
// come back as the top-ranked result.
type QueryTestCase struct {
	Query           []float32
	ExpectedContent string
	Description     string
}

// Corpus holds documents and query test cases for E2E tests.
type Corpus struct {
	Documents    []CorpusDocument
	TestCases    []QueryTestCase
	Dimensions   int
	TotalDocs    int
	TotalQueries int
}

// BuildCorpus returns a corpus of 100 documents with varied content and multiple
// query test cases. Embeddings are synthetic but unique per document, so a query
// that reuses a document's embedding must rank that document first.
func BuildCorpus() *Corpus {
	docs := buildDocuments(100)
	cases := buildQueryTestCases(docs)
	return &Corpus{
		Documents:    docs,
		TestCases:    cases,
		Dimensions:   CorpusDimensions,
		TotalDocs:    len(docs),
		TotalQueries: len(cases),
	}
}

func buildDocuments(n int) []CorpusDocument {
	topics := []string{
		"Standup notes: the deploy pipeline was flaky again, rerunning fixed it.",
		"Recipe idea: miso butter pasta with spring onions and a soft egg.",
		"Book note: The Mythical Man-Month argues adding people to a late project makes it later.",
		"Meeting with the platform team about moving cron jobs off the legacy box.",
		"Reminder: renew the TLS certificate for the staging environment before Friday.",
		"Thought: caching the config parse shaved 40ms off cold start.",
		"Quarterly goals draft: reduce alert noise, document the release process.",
		"Conversation with Sam about the flaky integration suite, suspect the shared fixture.",
		"Trip planning: three days in Kyoto, temples in the morning, markets after lunch.",
		"Bug investigation: the retry loop doubles writes when the server answers late.",
		"Idea for the talk: start with the outage story, then the postmortem changes.",
		"Grocery list experiment: plan meals for the week on Sunday, shop once.",
		"Performance note: batching the index updates cut the nightly job from 2h to 20m.",
		"One-on-one notes: wants to own the migration project next quarter.",
		"Reading list: papers on log-structured merge trees and write amplification.",
		"Incident follow-up: add a health check before the load balancer flips traffic.",
		"Sketch for the garden: tomatoes along the fence, herbs near the door.",
		"Interview debrief: strong on systems design, weaker on API ergonomics.",
		"Migration plan: dual-write for a week, compare checksums, then cut over.",
		"Note to self: the flaky test only fails when the machine clock is skewed.",
		"Workshop takeaway: write the runbook while the incident is fresh.",
		"Draft announcement for the internal tooling release, keep it under a page.",
		"Observation: most support tickets this month trace back to the same typo in the docs.",
		"Weekend project: build a small weather display for the kitchen shelf.",
		"Retro action item: rotate the on-call handoff doc into the team wiki.",
		"Language study: review the counters chapter before Thursday's lesson.",
		"Budget note: the staging cluster costs more than production, investigate.",
		"Photography plan: golden hour at the harbor, bring the 35mm lens.",
		"Refactor candidate: the report generator builds the same table three times.",
		"Hiring note: the take-home exercise is too long, trim it to two hours.",
		"Design question: should the export include soft-deleted rows or not.",
		"Music practice: the bridge section still drags, slow it down with the metronome.",
		"Security review: the upload endpoint trusts the client's content type.",
		"Moving checklist: transfer utilities two weeks before the lease starts.",
		"API feedback: callers keep asking for a bulk variant of the lookup call.",
		"Training log: easy 8k on tired legs, knee felt fine this time.",
		"Library idea: a tiny helper that diffs two config files semantically.",
		"Customer call summary: they need the export in their timezone, not UTC.",
		"Maintenance window plan: drain the queue first, then restart the workers.",
		"Journal: the morning writing habit is sticking, three weeks straight now.",
	}

	out := make([]CorpusDocument, 0, n)
	for i := 0; i < n && i < len(topics); i++ {
		out = append(out, CorpusDocument{
			Content:   topics[i],
			Embedding: embeddingFor(i),
		})
	}
	// If we need more than len(topics), duplicate with a suffix so content stays unique
	for len(out) < n {
		i := len(out)
		out = append(out, CorpusDocument{
			Content:   fmt.Sprintf("%s (entry %d)", topics[i%len(topics)], i+1),
			Embedding: embeddingFor(i),
		})
	}
	return out
}

// embeddingFor builds a unit vector for document i. Each document gets a
// primary axis plus a secondary axis at a weight no other document shares, so
// no two corpus embeddings are parallel.
func embeddingFor(i int) []float32 {
	v := make([]float32, CorpusDimensions)
	primary := i % CorpusDimensions
	secondary := (i + 3) % CorpusDimensions
	v[primary] = 1.0
	v[secondary] = 0.15 + 0.01*float32(i)
	utils.NormalizeL2(v)
	return v
}

func buildQueryTestCases(docs []CorpusDocument) []QueryTestCase {
	if len(docs) == 0 {
		return nil
	}
	// Every third document becomes a query target; querying with a document's
	// own embedding must put that document at rank 1.
	var cases []QueryTestCase
	for i := 0; i < len(docs); i += 3 {
		cases = append(cases, QueryTestCase{
			Query:           docs[i].Embedding,
			ExpectedContent: docs[i].Content,
			Description:     fmt.Sprintf("query aimed at document %03d ranks it first", i+1),
		})
	}
	return cases
}
