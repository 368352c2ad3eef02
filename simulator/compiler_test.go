package simulator

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/cachesweep/sweep"
)

// fakeCompiler touches the file named after -o.
const fakeCompiler = `#!/bin/sh
while [ $# -gt 0 ]; do
	if [ "$1" = "-o" ]; then
		touch "$2"
	fi
	shift
done
`

const brokenCompiler = `#!/bin/sh
echo "syntax error" >&2
exit 1
`

var _ = Describe("Compiler", func() {
	matmul := sweep.Variant{
		Name:    "MM64",
		Binary:  "bin/matrix_multiply_64x64",
		Source:  "matrix_multiply.c",
		Defines: []string{"MATRIX_SIZE=64"},
	}

	It("should build a static optimized binary", func() {
		c := NewCompiler("", "")

		Expect(c.Command(matmul)).To(Equal([]string{
			DefaultCompiler, "-O2", "-static", "-DMATRIX_SIZE=64",
			"matrix_multiply.c", "-o", "bin/matrix_multiply_64x64",
		}))
	})

	It("should skip variants without sources", func() {
		c := NewCompiler("/does/not/exist", "")

		Expect(c.Build(context.Background(), sweep.Variant{Name: "Simple"})).
			To(Succeed())
	})

	It("should compile into the work directory", func() {
		dir := GinkgoT().TempDir()
		writeScript(dir, "matrix_multiply.c", "int main() { return 0; }")
		c := NewCompiler(writeScript(dir, "cc", fakeCompiler), dir)

		Expect(c.Build(context.Background(), matmul)).To(Succeed())
		Expect(filepath.Join(dir, matmul.Binary)).To(BeARegularFile())
	})

	It("should report a missing source", func() {
		dir := GinkgoT().TempDir()
		c := NewCompiler(writeScript(dir, "cc", fakeCompiler), dir)

		err := c.Build(context.Background(), matmul)

		Expect(err).To(MatchError(sweep.ErrMissingPrerequisite))
	})

	It("should report compiler failures", func() {
		dir := GinkgoT().TempDir()
		writeScript(dir, "matrix_multiply.c", "")
		c := NewCompiler(writeScript(dir, "cc", brokenCompiler), dir)

		err := c.Build(context.Background(), matmul)

		Expect(err).To(MatchError(sweep.ErrMissingPrerequisite))
		Expect(err.Error()).To(ContainSubstring("syntax error"))
	})
})
