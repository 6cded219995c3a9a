package collector

import (
	"time"

	"github.com/jmylchreest/aptledger/pkg/billing"
	"github.com/jmylchreest/aptledger/pkg/extractor"
	"github.com/jmylchreest/aptledger/pkg/portal"
)

// Step names, in collection order.
const (
	StepUnit               = "unit"
	StepMaintenanceItems   = "maintenance_items"
	StepMaintenancePayment = "maintenance_payment"
	StepEnergyCategories   = "energy_categories"
	StepEnergyDetails      = "energy_details"
	StepPaymentHistory     = "payment_history"
)

type extraction struct {
	name  string
	apply func(html string, rec *billing.Record) error
}

type step struct {
	page        portal.Page
	settle      time.Duration
	extractions []extraction
}

// steps lists the pages in the order they are visited. The cost page is
// loaded once for both of its extractions.
func (c *Collector) steps() []step {
	return []step{
		{
			page:   portal.PageUnit,
			settle: c.config.UnitSettle,
			extractions: []extraction{{StepUnit, func(html string, rec *billing.Record) error {
				id, err := extractor.UnitID(html)
				rec.UnitID = id
				return err
			}}},
		},
		{
			page:   portal.PageCost,
			settle: c.config.PageSettle,
			extractions: []extraction{
				{StepMaintenanceItems, func(html string, rec *billing.Record) error {
					items, err := extractor.MaintenanceItems(html)
					if err != nil {
						return err
					}
					rec.MaintenanceItems = items
					return nil
				}},
				{StepMaintenancePayment, func(html string, rec *billing.Record) error {
					p, err := extractor.MaintenancePayment(html)
					if err != nil {
						return err
					}
					rec.MaintenancePayment = p
					return nil
				}},
			},
		},
		{
			page:   portal.PageEnergy,
			settle: c.config.PageSettle,
			extractions: []extraction{{StepEnergyCategories, func(html string, rec *billing.Record) error {
				cats, err := extractor.EnergyCategories(html)
				if err != nil {
					return err
				}
				rec.EnergyCategories = cats
				return nil
			}}},
		},
		{
			page:   portal.PageEnergyDetail,
			settle: c.config.PageSettle,
			extractions: []extraction{{StepEnergyDetails, func(html string, rec *billing.Record) error {
				details, err := extractor.EnergyDetails(html)
				if err != nil {
					return err
				}
				rec.EnergyDetails = details
				return nil
			}}},
		},
		{
			page:   portal.PageHistory,
			settle: c.config.PageSettle,
			extractions: []extraction{{StepPaymentHistory, func(html string, rec *billing.Record) error {
				hist, err := extractor.PaymentHistory(html)
				if err != nil {
					return err
				}
				rec.PaymentHistory = hist
				return nil
			}}},
		},
	}
}
