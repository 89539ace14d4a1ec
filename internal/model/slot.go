package model

// SlotName identifies one fact the qualification dialogue collects.
type SlotName string

// The closed slot universe. Extraction output is validated against this set at
// the adapter boundary; unknown names are dropped there, never downstream.
const (
	SlotDownPayment        SlotName = "down_payment"
	SlotPropertyPrice      SlotName = "property_price"
	SlotPropertyCity       SlotName = "property_city"
	SlotPropertyState      SlotName = "property_state"
	SlotLoanPurpose        SlotName = "loan_purpose"
	SlotHasPassport        SlotName = "has_passport"
	SlotHasVisa            SlotName = "has_visa"
	SlotCurrentCountry     SlotName = "current_country"
	SlotIncomeDocumentable SlotName = "income_documentable"
	SlotReservesHeld       SlotName = "reserves_held"
)

// SlotKind is the value discriminator for a slot.
type SlotKind string

const (
	KindNumber  SlotKind = "number"
	KindBoolean SlotKind = "boolean"
	KindText    SlotKind = "text"
)

// SlotCategory groups slots for scheduler boosts and prompt copy.
type SlotCategory string

const (
	CategoryFinancial     SlotCategory = "financial"
	CategoryLocation      SlotCategory = "location"
	CategoryDocumentation SlotCategory = "documentation"
	CategoryBackground    SlotCategory = "background"
)

// SlotDefinition describes one slot in the universe: its value kind, the
// friendly label used in prompts, the question asked to collect it, topic
// keywords for recency detection, and scheduling prerequisites.
type SlotDefinition struct {
	Name     SlotName     `yaml:"name"`
	Label    string       `yaml:"label"`
	Kind     SlotKind     `yaml:"kind"`
	Category SlotCategory `yaml:"category"`
	Question string       `yaml:"question"`
	Keywords []string     `yaml:"keywords"`
	// Prereqs lists slots whose presence makes this slot's question more
	// concrete (e.g. reserves can cite a dollar figure once price and down
	// payment are known). The scheduler boosts when all are filled and
	// slightly penalizes while any is absent.
	Prereqs []SlotName `yaml:"prereqs"`
}

// Financial reports whether the slot drives the business-rule validator and is
// therefore held to the stricter confirmation bar.
func (d SlotDefinition) Financial() bool {
	return d.Name == SlotDownPayment || d.Name == SlotPropertyPrice
}

// defaultSlots is the built-in slot universe in business-priority order.
var defaultSlots = []SlotDefinition{
	{
		Name:     SlotDownPayment,
		Label:    "Down payment",
		Kind:     KindNumber,
		Category: CategoryFinancial,
		Question: "How much are you planning to put down?",
		Keywords: []string{"down payment", "down-payment", "downpayment", "put down", "deposit"},
	},
	{
		Name:     SlotPropertyPrice,
		Label:    "Property price",
		Kind:     KindNumber,
		Category: CategoryFinancial,
		Question: "What is the purchase price of the property you're looking at?",
		Keywords: []string{"price", "purchase", "cost", "property value", "listing"},
	},
	{
		Name:     SlotLoanPurpose,
		Label:    "Loan purpose",
		Kind:     KindText,
		Category: CategoryFinancial,
		Question: "Is this home a primary residence, a second home, or an investment property?",
		Keywords: []string{"purpose", "investment", "primary", "residence", "second home", "rental", "dscr"},
	},
	{
		Name:     SlotPropertyCity,
		Label:    "Property city",
		Kind:     KindText,
		Category: CategoryLocation,
		Question: "Which city is the property in?",
		Keywords: []string{"city", "town", "located", "location"},
	},
	{
		Name:     SlotPropertyState,
		Label:    "Property state",
		Kind:     KindText,
		Category: CategoryLocation,
		Question: "Which state is the property in?",
		Keywords: []string{"state"},
	},
	{
		Name:     SlotHasPassport,
		Label:    "Passport held",
		Kind:     KindBoolean,
		Category: CategoryDocumentation,
		Question: "Do you hold a valid passport?",
		Keywords: []string{"passport"},
	},
	{
		Name:     SlotHasVisa,
		Label:    "Visa held",
		Kind:     KindBoolean,
		Category: CategoryDocumentation,
		Question: "Do you hold a valid U.S. visa?",
		Keywords: []string{"visa", "b1", "b2", "e2", "h1b"},
	},
	{
		Name:     SlotCurrentCountry,
		Label:    "Current country",
		Kind:     KindText,
		Category: CategoryBackground,
		Question: "Which country do you currently live in?",
		Keywords: []string{"country", "live", "reside", "based"},
	},
	{
		Name:     SlotIncomeDocumentable,
		Label:    "Income documentable",
		Kind:     KindBoolean,
		Category: CategoryDocumentation,
		Question: "Can you document your income with bank statements, tax returns, or an accountant letter?",
		Keywords: []string{"income", "salary", "earnings", "tax return", "bank statement", "cpa"},
	},
	{
		Name:     SlotReservesHeld,
		Label:    "Reserves held",
		Kind:     KindBoolean,
		Category: CategoryFinancial,
		Question: "Beyond the down payment, do you have reserves to cover several months of payments?",
		Keywords: []string{"reserves", "savings", "liquid", "cash on hand"},
		Prereqs:  []SlotName{SlotPropertyPrice, SlotDownPayment},
	},
}

// SlotRegistry is the indexed slot universe. Order of Slots is the
// business-priority ranking used for tie-breaks and initial ordering.
type SlotRegistry struct {
	Slots  []SlotDefinition
	byName map[SlotName]*SlotDefinition
}

// NewSlotRegistry builds an indexed registry from the given definitions.
func NewSlotRegistry(slots []SlotDefinition) *SlotRegistry {
	r := &SlotRegistry{
		Slots:  slots,
		byName: make(map[SlotName]*SlotDefinition, len(slots)),
	}
	for i := range r.Slots {
		r.byName[r.Slots[i].Name] = &r.Slots[i]
	}
	return r
}

// DefaultRegistry returns the built-in slot universe.
func DefaultRegistry() *SlotRegistry {
	defs := make([]SlotDefinition, len(defaultSlots))
	copy(defs, defaultSlots)
	return NewSlotRegistry(defs)
}

// ByName returns the definition for the given slot, or nil if unknown.
func (r *SlotRegistry) ByName(name SlotName) *SlotDefinition {
	return r.byName[name]
}

// Known reports whether the slot name is part of the universe.
func (r *SlotRegistry) Known(name SlotName) bool {
	_, ok := r.byName[name]
	return ok
}

// PriorityOrder returns slot names in business-priority order.
func (r *SlotRegistry) PriorityOrder() []SlotName {
	order := make([]SlotName, len(r.Slots))
	for i, d := range r.Slots {
		order[i] = d.Name
	}
	return order
}
