package config

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesweep/sweep"
)

var _ = Describe("Settings", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("should start from usable defaults", func() {
		s := DefaultSettings()

		Expect(s.Workers).To(BeNumerically(">=", 1))
		Expect(s.CompleteThreshold).To(Equal(int64(sweep.DefaultCompleteThreshold)))
		Expect(s.Timeout).To(BeZero())
		Expect(s.Validate()).To(Succeed())
	})

	It("should apply environment keys", func() {
		s, err := DefaultSettings().Apply(map[string]string{
			EnvSimulator:         "/opt/gem5/gem5.opt",
			EnvWorkers:           "3",
			EnvForce:             "true",
			EnvTimeout:           "90s",
			EnvCompleteThreshold: "2048",
			"UNRELATED":          "x",
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(s.SimulatorBinary).To(Equal("/opt/gem5/gem5.opt"))
		Expect(s.Workers).To(Equal(3))
		Expect(s.Force).To(BeTrue())
		Expect(s.Timeout).To(Equal(90 * time.Second))
		Expect(s.CompleteThreshold).To(Equal(int64(2048)))
		Expect(s.ResultsDir).To(Equal("results"))
	})

	It("should reject malformed values", func() {
		_, err := DefaultSettings().Apply(map[string]string{EnvWorkers: "many"})
		Expect(err).To(MatchError(ContainSubstring(EnvWorkers)))

		_, err = DefaultSettings().Apply(map[string]string{EnvForce: "maybe"})
		Expect(err).To(HaveOccurred())
	})

	It("should read env files and let the process environment win", func() {
		envFile := filepath.Join(dir, "sweep.env")
		Expect(os.WriteFile(envFile, []byte(
			"CACHESWEEP_RESULTS_DIR=out\nCACHESWEEP_WORKERS=2\n"), 0o644)).
			To(Succeed())

		GinkgoT().Setenv(EnvWorkers, "5")

		s, err := Load(envFile, filepath.Join(dir, "missing.env"))

		Expect(err).NotTo(HaveOccurred())
		Expect(s.ResultsDir).To(Equal("out"))
		Expect(s.Workers).To(Equal(5))
	})

	It("should refuse invalid settings", func() {
		s := DefaultSettings()
		s.Workers = 0
		Expect(s.Validate()).NotTo(Succeed())

		s = DefaultSettings()
		s.Timeout = -time.Second
		Expect(s.Validate()).NotTo(Succeed())
	})

	It("should describe the host", func() {
		Expect(HostInfo().String()).To(ContainSubstring("threads"))
	})
})

var _ = Describe("Presets", func() {
	It("should list every preset", func() {
		Expect(Presets()).To(Equal([]string{"l1", "matmul", "mergesort"}))

		for _, name := range Presets() {
			s, err := Preset(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Name).To(Equal(name))
			Expect(s.Validate()).To(Succeed())
		}

		_, err := Preset("fft")
		Expect(err).To(HaveOccurred())
	})

	It("should sweep 162 merge sort configurations", func() {
		s := MergeSort()

		Expect(s.Space.Count()).To(Equal(162))
		Expect(s.Jobs("results")).To(HaveLen(162))
	})

	It("should make one variant per matrix size", func() {
		s := MatMul(64, 256)

		Expect(s.Space.Count()).To(Equal(162))
		v, found := s.Space.FindVariant("MM256")
		Expect(found).To(BeTrue())
		Expect(v.Defines).To(ConsistOf("MATRIX_SIZE=256"))
		Expect(v.Binary).To(Equal("benchmarks/matrix_multiply_256x256"))
		Expect(MatMul(128).Space.Count()).To(Equal(81))
	})

	It("should run the default workload when there are no variants", func() {
		s := L1()

		jobs := s.Jobs("results")
		Expect(jobs).To(HaveLen(5))
		for _, j := range jobs {
			Expect(j.Variant.Binary).To(Equal("benchmarks/matrix_multiply"))
			Expect(j.Config.Variant).To(BeEmpty())
		}

		Expect(s.Workloads()).To(HaveLen(1))
	})

	It("should save and load custom sweeps", func() {
		path := filepath.Join(GinkgoT().TempDir(), "sweep.json")
		want := MatMul(64)
		want.Name = "small"

		Expect(SaveSweep(path, want)).To(Succeed())

		got, err := LoadSweep(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(want))
	})

	It("should reject broken sweep files", func() {
		dir := GinkgoT().TempDir()

		_, err := LoadSweep(filepath.Join(dir, "none.json"))
		Expect(err).To(MatchError(sweep.ErrMissingPrerequisite))

		bad := filepath.Join(dir, "bad.json")
		Expect(os.WriteFile(bad, []byte(
			`{"space": {"l1_sizes": ["16kB"], "l2_sizes": ["big"],
			  "l1_assocs": [2], "l2_assocs": [4],
			  "variants": [{"name": "A", "binary": "a"}]}}`), 0o644)).
			To(Succeed())

		_, err = LoadSweep(bad)
		Expect(err).To(HaveOccurred())

		noBinary := filepath.Join(dir, "nobinary.json")
		Expect(os.WriteFile(noBinary, []byte(
			`{"space": {"l1_sizes": ["16kB"], "l2_sizes": ["256kB"],
			  "l1_assocs": [2], "l2_assocs": [4]}}`), 0o644)).To(Succeed())

		_, err = LoadSweep(noBinary)
		Expect(err).To(MatchError(ContainSubstring("no binary")))
	})
})
