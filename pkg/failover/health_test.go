package failover

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xzinc/IPL/pkg/types"
)

var _ = Describe("Backend health state machine", func() {
	var (
		desc     types.BackendDescriptor
		settings Settings
	)

	fail := func(n int) {
		for i := 0; i < n; i++ {
			applyCheck(&desc, types.StatusUnreachable, settings)
		}
	}
	succeed := func(n int) {
		for i := 0; i < n; i++ {
			applyCheck(&desc, types.StatusHealthy, settings)
		}
	}

	BeforeEach(func() {
		settings = DefaultSettings()
		desc = types.BackendDescriptor{Name: "primary", Status: types.StatusHealthy}
	})

	Context("when checks fail", func() {
		It("degrades on the first failure", func() {
			fail(1)
			Expect(desc.Status).To(Equal(types.StatusDegraded))
			Expect(desc.ConsecutiveFailures).To(Equal(1))
		})

		It("stays reachable after two failures", func() {
			fail(2)
			Expect(desc.Status).To(Equal(types.StatusDegraded))
		})

		It("becomes unreachable after exactly three consecutive failures", func() {
			fail(3)
			Expect(desc.Status).To(Equal(types.StatusUnreachable))
			Expect(desc.ErrorCount).To(Equal(int64(3)))
		})

		It("restarts the count when a success interrupts the failures", func() {
			fail(2)
			succeed(1)
			fail(2)
			Expect(desc.Status).To(Equal(types.StatusDegraded))
			fail(1)
			Expect(desc.Status).To(Equal(types.StatusUnreachable))
		})
	})

	Context("when an unreachable backend recovers", func() {
		BeforeEach(func() {
			fail(3)
		})

		It("moves to degraded on a single success, never straight to healthy", func() {
			succeed(1)
			Expect(desc.Status).To(Equal(types.StatusDegraded))
		})

		It("needs two further consecutive successes to be healthy", func() {
			succeed(2)
			Expect(desc.Status).To(Equal(types.StatusDegraded))
			succeed(1)
			Expect(desc.Status).To(Equal(types.StatusHealthy))
		})

		It("falls back to counting from zero after a failure while degraded", func() {
			succeed(2)
			fail(1)
			succeed(1)
			Expect(desc.Status).To(Equal(types.StatusDegraded))
			succeed(1)
			Expect(desc.Status).To(Equal(types.StatusHealthy))
		})
	})

	Context("when the adapter reports degraded", func() {
		It("marks the backend degraded and resets both counters", func() {
			fail(2)
			applyCheck(&desc, types.StatusDegraded, settings)
			Expect(desc.Status).To(Equal(types.StatusDegraded))
			Expect(desc.ConsecutiveFailures).To(BeZero())
			Expect(desc.ConsecutiveSuccesses).To(BeZero())
		})
	})
})
