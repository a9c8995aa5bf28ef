package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/varimech/internal/scenario"
	"github.com/san-kum/varimech/internal/sim"
	"github.com/san-kum/varimech/internal/varint"
)

func TestStorage(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Storage Suite")
}

var _ = Describe("Store", func() {
	var (
		store  *Store
		result *sim.Result
		simr   *sim.Simulator
	)

	BeforeEach(func() {
		dir := GinkgoT().TempDir()

		var err error
		store, err = Open(dir)
		Expect(err).NotTo(HaveOccurred())

		sys, q0, v0, err := scenario.BuildNamed("pendulum", map[string]float64{"theta0": 0.3})
		Expect(err).NotTo(HaveOccurred())
		simr, err = sim.New(sys, q0, v0, varint.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		result, err = simr.Run(context.Background(), sim.RunConfig{Duration: 0.5, Dt: 0.01})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	save := func() string {
		id, err := store.Save(RunMeta{
			Scenario:   "pendulum",
			Params:     map[string]float64{"theta0": 0.3},
			Scheme:     "midpoint",
			Controller: "none",
			Dt:         0.01,
			Duration:   0.5,
			Metrics:    map[string]float64{"energy-drift": 1e-9},
		}, simr.System(), result)
		Expect(err).NotTo(HaveOccurred())
		return id
	}

	It("saves and loads run metadata", func() {
		id := save()
		Expect(id).NotTo(BeEmpty())

		meta, err := store.Load(id)
		Expect(err).NotTo(HaveOccurred())
		Expect(meta.Scenario).To(Equal("pendulum"))
		Expect(meta.Scheme).To(Equal("midpoint"))
		Expect(meta.Steps).To(Equal(len(result.States)))
		Expect(meta.Params).To(HaveKeyWithValue("theta0", 0.3))
		Expect(meta.Metrics).To(HaveKeyWithValue("energy-drift", 1e-9))
	})

	It("round-trips the trajectory with named columns", func() {
		id := save()

		tr, err := store.LoadTrajectory(id)
		Expect(err).NotTo(HaveOccurred())
		Expect(tr.Columns).To(ContainElements("t", "q_theta", "p_theta", "v_theta"))
		Expect(tr.Rows).To(HaveLen(len(result.States)))

		times := tr.Times()
		Expect(times[0]).To(BeNumerically("==", 0))
		Expect(times[len(times)-1]).To(BeNumerically("~", result.Final().T, 1e-12))

		theta := tr.Column("q_theta")
		Expect(theta[len(theta)-1]).To(BeNumerically("~", result.Final().Q[0], 1e-9))
		Expect(tr.Column("no_such_column")).To(BeNil())
	})

	It("lists runs newest first", func() {
		first := save()
		second := save()

		runs, err := store.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(HaveLen(2))

		ids := []string{runs[0].ID, runs[1].ID}
		Expect(ids).To(ConsistOf(first, second))
	})

	It("deletes a run from index and disk", func() {
		id := save()
		runDir := filepath.Join(store.Dir(), id)
		Expect(runDir).To(BeADirectory())

		Expect(store.Delete(id)).To(Succeed())
		_, err := store.Load(id)
		Expect(err).To(HaveOccurred())
		_, err = os.Stat(runDir)
		Expect(os.IsNotExist(err)).To(BeTrue())

		Expect(store.Delete(id)).NotTo(Succeed())
	})

	It("exports a run as JSON", func() {
		id := save()

		var buf bytes.Buffer
		Expect(store.WriteJSON(&buf, id)).To(Succeed())

		var data ExportData
		Expect(json.Unmarshal(buf.Bytes(), &data)).To(Succeed())
		Expect(data.Meta.ID).To(Equal(id))
		Expect(data.Columns).To(ContainElement("q_theta"))
		Expect(data.Rows).To(HaveLen(len(result.States)))
	})

	It("survives reopening the index", func() {
		id := save()
		Expect(store.Close()).To(Succeed())

		reopened, err := Open(store.Dir())
		Expect(err).NotTo(HaveOccurred())
		store = reopened

		meta, err := store.Load(id)
		Expect(err).NotTo(HaveOccurred())
		Expect(meta.Scenario).To(Equal("pendulum"))
	})
})
