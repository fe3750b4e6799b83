package rerank_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"scribe/internal/pkg/rerank"
)

var _ = Describe("CosineSimilarity", func() {
	It("is 1 for identical vectors", func() {
		Expect(rerank.CosineSimilarity([]float64{1, 2, 3}, []float64{1, 2, 3})).To(BeNumerically("~", 1.0, 1e-9))
	})

	It("is 0 for orthogonal vectors", func() {
		Expect(rerank.CosineSimilarity([]float64{1, 0}, []float64{0, 1})).To(BeNumerically("~", 0.0, 1e-9))
	})

	It("is -1 for opposite vectors", func() {
		Expect(rerank.CosineSimilarity([]float64{1, 1}, []float64{-1, -1})).To(BeNumerically("~", -1.0, 1e-9))
	})

	DescribeTable("degenerate inputs score zero",
		func(a, b []float64) {
			Expect(rerank.CosineSimilarity(a, b)).To(BeZero())
		},
		Entry("length mismatch", []float64{1, 2}, []float64{1, 2, 3}),
		Entry("empty vectors", []float64{}, []float64{}),
		Entry("zero magnitude", []float64{0, 0}, []float64{1, 2}),
	)
})

var _ = Describe("Top", func() {
	It("returns the n best scores in descending order", func() {
		top := rerank.Top([]float64{0.1, 0.9, 0.5, 0.7}, 2)
		Expect(top).To(HaveLen(2))
		Expect(top[0].Index).To(Equal(1))
		Expect(top[0].Score).To(Equal(0.9))
		Expect(top[1].Index).To(Equal(3))
	})

	It("returns everything when n exceeds the candidate count", func() {
		top := rerank.Top([]float64{0.2, 0.4}, 10)
		Expect(top).To(HaveLen(2))
		Expect(top[0].Index).To(Equal(1))
	})

	It("keeps input order for ties", func() {
		top := rerank.Top([]float64{0.5, 0.5, 0.5}, 3)
		Expect(top[0].Index).To(Equal(0))
		Expect(top[1].Index).To(Equal(1))
		Expect(top[2].Index).To(Equal(2))
	})
})
