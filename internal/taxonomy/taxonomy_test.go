package taxonomy_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/wibowo/expense-report/internal/taxonomy"
)

func TestTaxonomy(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Taxonomy Suite")
}

var _ = Describe("Taxonomy", func() {
	Describe("category tree", func() {
		It("keeps the master groups in display order", func() {
			Expect(taxonomy.MasterGroups()).To(Equal([]string{
				taxonomy.GroupTravel,
				taxonomy.GroupOfficeSupplies,
				taxonomy.GroupUtilities,
			}))
		})

		It("binds subgroups to their master group", func() {
			Expect(taxonomy.IsValidPair(taxonomy.GroupTravel, taxonomy.SubgroupFood)).To(BeTrue())
			Expect(taxonomy.IsValidPair(taxonomy.GroupUtilities, taxonomy.SubgroupFood)).To(BeFalse())
			Expect(taxonomy.IsValidPair("UNKNOWN", taxonomy.SubgroupFood)).To(BeFalse())
		})

		It("defaults to the first subgroup of a group", func() {
			Expect(taxonomy.FirstSubgroup(taxonomy.GroupTravel)).To(Equal(taxonomy.SubgroupTicket))
			Expect(taxonomy.FirstSubgroup(taxonomy.GroupOfficeSupplies)).To(Equal(taxonomy.SubgroupEquipment))
			Expect(taxonomy.FirstSubgroup("UNKNOWN")).To(BeEmpty())
		})
	})

	Describe("currencies", func() {
		It("accepts the supported set and nothing else", func() {
			for _, c := range []string{"USD", "EUR", "GBP", "INR", "CAD"} {
				Expect(taxonomy.IsValidCurrency(c)).To(BeTrue(), c)
			}
			Expect(taxonomy.IsValidCurrency("JPY")).To(BeFalse())
			Expect(taxonomy.IsValidCurrency("usd")).To(BeFalse())
		})
	})

	Describe("statuses", func() {
		It("normalizes case before validation", func() {
			Expect(taxonomy.NormalizeStatus(" approved ")).To(Equal(taxonomy.StatusApproved))
			Expect(taxonomy.IsValidStatus(taxonomy.NormalizeStatus("pending"))).To(BeTrue())
			Expect(taxonomy.IsValidStatus("DRAFT")).To(BeFalse())
		})

		It("maps labels back to codes for imports", func() {
			code, ok := taxonomy.StatusForLabel("Sent for Approval")
			Expect(ok).To(BeTrue())
			Expect(code).To(Equal(taxonomy.StatusSendForApproval))

			code, ok = taxonomy.GroupForLabel("Office Supplies")
			Expect(ok).To(BeTrue())
			Expect(code).To(Equal(taxonomy.GroupOfficeSupplies))

			code, ok = taxonomy.SubgroupForLabel("Food Expense")
			Expect(ok).To(BeTrue())
			Expect(code).To(Equal(taxonomy.SubgroupFood))

			_, ok = taxonomy.StatusForLabel("Nonsense")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("AggregateStatus", func() {
		It("reports PENDING for an empty report", func() {
			Expect(taxonomy.AggregateStatus(nil)).To(Equal(taxonomy.StatusPending))
		})

		It("reports APPROVED only when every form is approved", func() {
			Expect(taxonomy.AggregateStatus([]string{
				taxonomy.StatusApproved, taxonomy.StatusApproved,
			})).To(Equal(taxonomy.StatusApproved))
		})

		It("lets an in-review form dominate everything else", func() {
			Expect(taxonomy.AggregateStatus([]string{
				taxonomy.StatusApproved,
				taxonomy.StatusRejected,
				taxonomy.StatusSendForApproval,
				taxonomy.StatusPending,
			})).To(Equal(taxonomy.StatusSendForApproval))
		})

		It("ranks PENDING above review outcomes", func() {
			Expect(taxonomy.AggregateStatus([]string{
				taxonomy.StatusApproved,
				taxonomy.StatusRejected,
				taxonomy.StatusPending,
			})).To(Equal(taxonomy.StatusPending))
		})

		It("ranks REJECTED above APPROVED", func() {
			Expect(taxonomy.AggregateStatus([]string{
				taxonomy.StatusApproved,
				taxonomy.StatusRejected,
			})).To(Equal(taxonomy.StatusRejected))
		})
	})
})
