package sweep

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Size", func() {
	DescribeTable("parsing",
		func(in string, kb int) {
			Expect(ParseSizeKB(in)).To(Equal(kb))
		},
		Entry("kB", "64kB", 64),
		Entry("large kB", "1024kB", 1024),
		Entry("upper KB", "32KB", 32),
		Entry("short k", "16k", 16),
		Entry("MB", "1MB", 1024),
		Entry("two MB", "2MB", 2048),
		Entry("half MB", "0.5MB", 512),
		Entry("GB", "1GB", 1048576),
		Entry("bare number", "256", 256),
		Entry("spaces", " 128kB ", 128),
	)

	DescribeTable("rejecting",
		func(in string) {
			_, err := ParseSizeKB(in)
			Expect(err).To(HaveOccurred())
		},
		Entry("empty", ""),
		Entry("unit only", "kB"),
		Entry("unknown unit", "64zB"),
		Entry("zero", "0kB"),
		Entry("negative", "-1kB"),
		Entry("fraction of kB", "1.5kB"),
	)

	It("should treat 1MB and 1024kB as the same size", func() {
		Expect(ParseSizeKB("1MB")).To(Equal(MustParseSizeKB("1024kB")))
	})

	It("should format kilobytes", func() {
		Expect(FormatSizeKB(512)).To(Equal("512kB"))
		Expect(ParseSizeKB(FormatSizeKB(2048))).To(Equal(2048))
	})

	It("should panic on invalid sizes when told they are valid", func() {
		Expect(func() { MustParseSizeKB("x") }).To(Panic())
	})
})
