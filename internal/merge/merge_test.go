package merge_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/merge"
)

const solar = 100.0

var _ = Describe("Classify", func() {
	p := merge.DefaultParams()

	DescribeTable("product type by inputs and combined mass",
		func(a, b body.Type, msun float64, want body.Type, inPlace bool) {
			got, gotInPlace := p.Classify(a, b, msun*solar)
			Expect(got).To(Equal(want))
			Expect(gotInPlace).To(Equal(inPlace))
		},
		Entry("black hole absorbs a star in place", body.BlackHole, body.Star, 5.0, body.BlackHole, true),
		Entry("two black holes merge in place", body.BlackHole, body.BlackHole, 200.0, body.BlackHole, true),
		Entry("massive stars collapse", body.Star, body.Star, 25.0, body.BlackHole, false),
		Entry("neutron stars above TOV collapse", body.NeutronStar, body.NeutronStar, 3.2, body.BlackHole, false),
		Entry("neutron star keeps TOV limit with a star", body.NeutronStar, body.Star, 3.5, body.BlackHole, false),
		Entry("white dwarfs above Chandrasekhar", body.WhiteDwarf, body.WhiteDwarf, 1.5, body.NeutronStar, false),
		Entry("light white dwarfs stay white dwarfs", body.WhiteDwarf, body.WhiteDwarf, 1.2, body.WhiteDwarf, false),
		Entry("neutron star plus white dwarf", body.NeutronStar, body.WhiteDwarf, 2.0, body.NeutronStar, false),
		Entry("stars past the intermediate mass", body.Star, body.Star, 9.0, body.NeutronStar, false),
		Entry("ordinary stars", body.Star, body.Star, 2.0, body.Star, false),
		Entry("star wins over a light white dwarf", body.Star, body.WhiteDwarf, 1.0, body.Star, false),
		Entry("star plus white dwarf past Chandrasekhar", body.Star, body.WhiteDwarf, 1.6, body.NeutronStar, false),
		Entry("giants ignite into a star", body.GasGiant, body.GasGiant, 0.1, body.Star, false),
		Entry("light giants stay giants", body.GasGiant, body.GasGiant, 0.05, body.GasGiant, false),
		Entry("giant into a star", body.GasGiant, body.Star, 1.0, body.Star, false),
	)

	It("is monotonic in combined mass", func() {
		rank := map[body.Type]int{
			body.GasGiant: 0, body.Star: 1, body.WhiteDwarf: 1, body.NeutronStar: 2, body.BlackHole: 3,
		}
		pairs := [][2]body.Type{
			{body.Star, body.Star}, {body.NeutronStar, body.NeutronStar}, {body.WhiteDwarf, body.WhiteDwarf},
			{body.NeutronStar, body.WhiteDwarf}, {body.Star, body.NeutronStar}, {body.GasGiant, body.GasGiant},
		}
		for _, pair := range pairs {
			prev := -1
			for msun := 0.01; msun < 40; msun *= 1.1 {
				got, _ := p.Classify(pair[0], pair[1], msun*solar)
				again, _ := p.Classify(pair[0], pair[1], msun*solar)
				Expect(again).To(Equal(got))
				Expect(rank[got]).To(BeNumerically(">=", prev), "%v+%v at %.3f M☉", pair[0], pair[1], msun)
				prev = rank[got]
			}
		}
	})
})

var _ = Describe("Eligible", func() {
	DescribeTable("pairs",
		func(a, b body.Type, want bool) {
			Expect(merge.Eligible(a, b)).To(Equal(want))
			Expect(merge.Eligible(b, a)).To(Equal(want))
		},
		Entry("Star + Star", body.Star, body.Star, true),
		Entry("Star + NeutronStar", body.Star, body.NeutronStar, true),
		Entry("NeutronStar + NeutronStar", body.NeutronStar, body.NeutronStar, true),
		Entry("WhiteDwarf + WhiteDwarf", body.WhiteDwarf, body.WhiteDwarf, true),
		Entry("NeutronStar + WhiteDwarf", body.NeutronStar, body.WhiteDwarf, true),
		Entry("Star + WhiteDwarf", body.Star, body.WhiteDwarf, true),
		Entry("BlackHole + BlackHole", body.BlackHole, body.BlackHole, true),
		Entry("BlackHole + Star", body.BlackHole, body.Star, true),
		Entry("GasGiant + GasGiant", body.GasGiant, body.GasGiant, true),
		Entry("GasGiant + Star", body.GasGiant, body.Star, true),
		Entry("GasGiant + NeutronStar", body.GasGiant, body.NeutronStar, false),
		Entry("BlackHole + Planet", body.BlackHole, body.Planet, false),
		Entry("Planet + Planet", body.Planet, body.Planet, false),
		Entry("Debris + Star", body.Debris, body.Star, false),
	)
})

var _ = Describe("Merger", func() {
	var (
		reg *body.Registry
		m   *merge.Merger
	)

	spawn := func(t body.Type, x, vx, mass float64) *body.Body {
		b := body.New(0, t, r2.Vec{X: x}, r2.Vec{X: vx}, mass)
		Expect(reg.Insert(b)).To(BeTrue())
		return b
	}

	BeforeEach(func() {
		reg = body.NewRegistry()
		m = merge.NewMerger(merge.DefaultParams(), rand.New(rand.NewSource(1)))
	})

	It("conserves mass and momentum when spawning a new body", func() {
		a := spawn(body.Star, -1, 3, 150)
		b := spawn(body.Star, 1, -1, 50)
		pBefore := r2.Add(a.Momentum(), b.Momentum())

		recs := m.Step(reg, reg.Bodies())
		Expect(recs).To(HaveLen(1))

		out, ok := reg.Get(recs[0].ResultID)
		Expect(ok).To(BeTrue())
		Expect(out.Type).To(Equal(body.Star))
		Expect(out.Mass).To(BeNumerically("~", 200, 1e-9))
		Expect(out.Momentum().X).To(BeNumerically("~", pBefore.X, 1e-9))
		Expect(out.Pos.X).To(BeNumerically("~", -0.5, 1e-12))
		Expect(a.Alive).To(BeFalse())
		Expect(b.Alive).To(BeFalse())
		Expect(out.ID).To(BeNumerically(">", b.ID))
	})

	It("keeps the existing black hole when it absorbs a star", func() {
		hole := spawn(body.BlackHole, 0, 0, 100)
		star := spawn(body.Star, 1, 10, 100)

		recs := m.Step(reg, reg.Bodies())
		Expect(recs).To(HaveLen(1))
		Expect(recs[0].InPlace).To(BeTrue())
		Expect(recs[0].ResultID).To(Equal(hole.ID))

		Expect(hole.Alive).To(BeTrue())
		Expect(hole.Mass).To(Equal(200.0))
		Expect(hole.Vel.X).To(BeNumerically("~", 5, 1e-12))
		Expect(hole.Pos.X).To(BeNumerically("~", 0.5, 1e-12))
		Expect(star.Alive).To(BeFalse())
		Expect(reg.BlackHoles()).To(HaveLen(1))
	})

	It("merges two black holes into the heavier one and moves its disk", func() {
		small := spawn(body.BlackHole, 2, 0, 80)
		big := spawn(body.BlackHole, -2, 0, 120)
		p := body.New(0, body.AccretionDiskParticle, r2.Vec{X: 30}, r2.Vec{}, 0.1)
		p.OwnerID = small.ID
		Expect(reg.Insert(p)).To(BeTrue())

		recs := m.Step(reg, reg.Bodies())
		Expect(recs).To(HaveLen(1))
		Expect(recs[0].ResultID).To(Equal(big.ID))
		Expect(recs[0].Reparented).To(Equal(1))
		Expect(big.Mass).To(Equal(200.0))
		Expect(small.Alive).To(BeFalse())
		Expect(p.OwnerID).To(Equal(big.ID))
	})

	It("breaks black hole mass ties by lower id", func() {
		first := spawn(body.BlackHole, 0, 0, 100)
		second := spawn(body.BlackHole, 1, 0, 100)

		recs := m.Step(reg, reg.Bodies())
		Expect(recs).To(HaveLen(1))
		Expect(recs[0].ResultID).To(Equal(first.ID))
		Expect(second.Alive).To(BeFalse())
	})

	It("flags neutron star mergers as kilonovae and boosts collapse", func() {
		spawn(body.NeutronStar, 0, 0, 140)
		spawn(body.NeutronStar, 1, 0, 140)

		recs := m.Step(reg, reg.Bodies())
		Expect(recs).To(HaveLen(1))
		Expect(recs[0].Kilonova).To(BeTrue())
		Expect(recs[0].Result).To(Equal(body.NeutronStar))
		plain := recs[0].Strength

		reg = body.NewRegistry()
		spawn(body.NeutronStar, 0, 0, 200)
		spawn(body.NeutronStar, 1, 0, 200)
		recs = m.Step(reg, reg.Bodies())
		Expect(recs[0].Result).To(Equal(body.BlackHole))
		Expect(recs[0].Strength).To(BeNumerically("~", plain*2*400/280, 1e-9))
	})

	It("merges each body at most once per step", func() {
		spawn(body.Star, 0, 0, 100)
		spawn(body.Star, 1, 0, 100)
		spawn(body.Star, 2, 0, 100)

		recs := m.Step(reg, reg.Bodies())
		Expect(recs).To(HaveLen(1))
		alive := 0
		for _, b := range reg.Bodies() {
			if b.Alive {
				alive++
			}
		}
		Expect(alive).To(Equal(2))
	})

	It("ignores pairs that only bounce", func() {
		spawn(body.Planet, 0, 0, 5)
		spawn(body.Planet, 1, 0, 5)
		Expect(m.Step(reg, reg.Bodies())).To(BeEmpty())
	})
})
