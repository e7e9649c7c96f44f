// Package taxonomy is the single source of truth for the two-level expense
// category tree, the currency set and the line-item status lifecycle. Every
// other package validates against these tables instead of carrying its own
// copies.
package taxonomy

import "strings"

// Master groups.
const (
	GroupTravel         = "TRAVEL"
	GroupOfficeSupplies = "OFFICE_SUPPLIES"
	GroupUtilities      = "UTILITIES"
)

// Subgroups.
const (
	SubgroupTicket      = "TICKET"
	SubgroupFood        = "FOOD"
	SubgroupHospitality = "HOSPITALITY"
	SubgroupEquipment   = "EQUIPMENT"
	SubgroupStationery  = "STATIONERY"
	SubgroupInternet    = "INTERNET"
	SubgroupElectricity = "ELECTRICITY"
)

// Statuses.
const (
	StatusPending         = "PENDING"
	StatusSendForApproval = "SEND_FOR_APPROVAL"
	StatusApproved        = "APPROVED"
	StatusRejected        = "REJECTED"
)

// masterGroups preserves display order; subgroup order within a group matters
// because the first entry is the default whenever the group changes.
var masterGroups = []string{GroupTravel, GroupOfficeSupplies, GroupUtilities}

var subgroupsByGroup = map[string][]string{
	GroupTravel:         {SubgroupTicket, SubgroupFood, SubgroupHospitality},
	GroupOfficeSupplies: {SubgroupEquipment, SubgroupStationery},
	GroupUtilities:      {SubgroupInternet, SubgroupElectricity},
}

var currencies = []string{"USD", "EUR", "GBP", "INR", "CAD"}

var statuses = []string{StatusPending, StatusSendForApproval, StatusApproved, StatusRejected}

var groupLabels = map[string]string{
	GroupTravel:         "Travel",
	GroupOfficeSupplies: "Office Supplies",
	GroupUtilities:      "Utilities",
}

var subgroupLabels = map[string]string{
	SubgroupTicket:      "Ticket Expense",
	SubgroupFood:        "Food Expense",
	SubgroupHospitality: "Hospitality Expense",
	SubgroupEquipment:   "Equipment",
	SubgroupStationery:  "Stationery",
	SubgroupInternet:    "Internet",
	SubgroupElectricity: "Electricity",
}

var statusLabels = map[string]string{
	StatusPending:         "Pending",
	StatusSendForApproval: "Sent for Approval",
	StatusApproved:        "Approved",
	StatusRejected:        "Rejected",
}

// statusPrecedence orders statuses for deriving a title's aggregate status:
// SEND_FOR_APPROVAL > PENDING > REJECTED > APPROVED.
var statusPrecedence = []string{StatusSendForApproval, StatusPending, StatusRejected, StatusApproved}

func MasterGroups() []string {
	out := make([]string, len(masterGroups))
	copy(out, masterGroups)
	return out
}

func SubgroupsFor(group string) []string {
	subs, ok := subgroupsByGroup[group]
	if !ok {
		return nil
	}
	out := make([]string, len(subs))
	copy(out, subs)
	return out
}

// FirstSubgroup returns the default subgroup for a master group.
func FirstSubgroup(group string) string {
	subs := subgroupsByGroup[group]
	if len(subs) == 0 {
		return ""
	}
	return subs[0]
}

func Currencies() []string {
	out := make([]string, len(currencies))
	copy(out, currencies)
	return out
}

func Statuses() []string {
	out := make([]string, len(statuses))
	copy(out, statuses)
	return out
}

func IsValidMasterGroup(group string) bool {
	_, ok := subgroupsByGroup[group]
	return ok
}

// IsValidPair reports whether subgroup belongs to the given master group.
func IsValidPair(group, subgroup string) bool {
	for _, s := range subgroupsByGroup[group] {
		if s == subgroup {
			return true
		}
	}
	return false
}

func IsValidCurrency(currency string) bool {
	for _, c := range currencies {
		if c == currency {
			return true
		}
	}
	return false
}

func IsValidStatus(status string) bool {
	_, ok := statusLabels[status]
	return ok
}

// NormalizeStatus upper-cases a status value so clients may send "approved"
// or "APPROVED" interchangeably.
func NormalizeStatus(status string) string {
	return strings.ToUpper(strings.TrimSpace(status))
}

func GroupLabel(group string) string {
	if label, ok := groupLabels[group]; ok {
		return label
	}
	return group
}

func SubgroupLabel(subgroup string) string {
	if label, ok := subgroupLabels[subgroup]; ok {
		return label
	}
	return subgroup
}

func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

// GroupForLabel resolves a display label (or the raw code) back to a master
// group code. Import files may carry either form.
func GroupForLabel(value string) (string, bool) {
	return codeForLabel(value, masterGroups, groupLabels)
}

func SubgroupForLabel(value string) (string, bool) {
	all := make([]string, 0, len(subgroupLabels))
	for _, subs := range subgroupsByGroup {
		all = append(all, subs...)
	}
	return codeForLabel(value, all, subgroupLabels)
}

func StatusForLabel(value string) (string, bool) {
	return codeForLabel(value, statuses, statusLabels)
}

func codeForLabel(value string, codes []string, labels map[string]string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	for _, code := range codes {
		if strings.EqualFold(trimmed, code) || strings.EqualFold(trimmed, labels[code]) {
			return code, true
		}
	}
	return "", false
}

// AggregateStatus derives a title's status from its forms using the
// precedence table. Titles without forms report PENDING.
func AggregateStatus(formStatuses []string) string {
	if len(formStatuses) == 0 {
		return StatusPending
	}
	present := make(map[string]bool, len(formStatuses))
	for _, s := range formStatuses {
		present[s] = true
	}
	for _, s := range statusPrecedence {
		if present[s] {
			return s
		}
	}
	return StatusPending
}
