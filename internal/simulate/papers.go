package simulate

import (
	"fmt"
	"math/rand"

	"github.com/zz9tf/publications-view/internal/fetch"
)

// Fabricated publication material for demo runs. Entries cycle when a run
// wants more papers than the catalog holds.
var paperCatalog = []struct {
	title       string
	publisher   string
	description string
}{
	{"Attention-Guided Graph Networks for Histopathology Image Analysis", "IEEE", "Applies graph attention over tissue regions to improve slide-level diagnosis."},
	{"Federated Learning for Multi-Site Medical Image Segmentation", "Springer", "Trains segmentation models across hospitals without sharing patient data."},
	{"Self-Supervised Pretraining for Low-Resource Document Understanding", "ACM", "Learns layout-aware representations from unlabeled scanned documents."},
	{"A Survey of Retrieval-Augmented Generation for Scientific Text", "Elsevier", "Reviews retrieval strategies that ground generation in citable sources."},
	{"Contrastive Representation Learning on Citation Graphs", "IEEE", "Uses citation structure as supervision for paper embeddings."},
	{"Efficient Transformers for Long Clinical Records", "PMLR", "Benchmarks sparse attention variants on longitudinal patient histories."},
	{"Uncertainty Estimation in Deep Survival Models", "Springer", "Calibrates risk predictions for censored clinical outcomes."},
	{"Cross-Lingual Entity Linking with Minimal Supervision", "ACL", "Links mentions across languages using a shared phonetic prior."},
	{"Knowledge Distillation under Domain Shift", "IEEE", "Studies when distilled students outperform teachers on shifted data."},
	{"Curriculum Sampling for Noisy Label Learning", "PMLR", "Schedules training examples by estimated label reliability."},
	{"Graph Rewiring for Oversquashing in Message Passing", "ACM", "Adds shortcut edges guided by effective resistance."},
	{"Benchmarking Tabular Foundation Models on Clinical Data", "Elsevier", "Compares pretrained tabular models against gradient boosting baselines."},
	{"Prompt Ensembles for Zero-Shot Document Classification", "ACL", "Aggregates paraphrased prompts to stabilise zero-shot accuracy."},
	{"Sparse Mixture-of-Experts for On-Device Inference", "IEEE", "Routes tokens to tiny experts to fit mobile memory budgets."},
	{"Causal Feature Selection for Electronic Health Records", "Springer", "Filters spurious correlates before downstream risk modelling."},
	{"Rethinking Evaluation of Academic Search Ranking", "ACM", "Proposes intent-aware judgments for scholarly retrieval."},
}

var authorPool = []string{
	"L. Chen", "M. Rodriguez", "A. Gupta", "S. Kim", "J. Müller",
	"R. Tanaka", "E. Rossi", "P. Nowak", "T. Okafor", "D. Haverford",
	"N. Petrova", "K. Johansson", "F. Alvarez", "H. Zhang",
}

// fabricatePapers builds a deterministic paper list for one run; all
// randomness is drawn here so the drive loop stays rng-free.
func fabricatePapers(rng *rand.Rand, jobID string, total int) []fetch.Paper {
	base := rng.Intn(len(paperCatalog))
	papers := make([]fetch.Paper, total)
	for i := range papers {
		entry := paperCatalog[(base+i)%len(paperCatalog)]
		year := 2016 + rng.Intn(10)
		nAuthors := 2 + rng.Intn(3)
		authors := make([]string, nAuthors)
		for a := range authors {
			authors[a] = authorPool[(base+i*3+a)%len(authorPool)]
		}
		p := fetch.Paper{
			Title:       entry.title,
			Authors:     authors,
			Year:        year,
			Date:        fmt.Sprintf("%d/%d/%d", year, 1+rng.Intn(12), 1+rng.Intn(28)),
			URL:         fmt.Sprintf("https://scholar.google.com/citations?view_op=view_citation&citation_for_view=%s:%d", jobID, i),
			Citations:   rng.Intn(4000),
			Publisher:   entry.publisher,
			Description: entry.description,
		}
		if i%2 == 0 {
			p.PDFURL = fmt.Sprintf("https://arxiv.org/pdf/2%03d.%05d", rng.Intn(400), rng.Intn(99999))
		}
		papers[i] = p
	}
	return papers
}

var failureMessages = []string{
	"profile page unreachable",
	"rate limited by upstream",
	"could not parse publication table",
}
