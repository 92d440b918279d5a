// Package participant defines participant identity and the offer-precedence order.
package participant

import "fmt"

// ID identifies a participant by a stable numeric identity and a
// human-readable handle. The numeric identity is the canonical total order
// used for negotiation tie-breaking; the handle is display metadata only.
type ID struct {
	Num    uint64 `json:"id"`
	Handle string `json:"handle"`
}

// Outranks reports whether p initiates negotiation toward other. Both sides
// of a pair compute this independently from static identity values, so
// exactly one side ever produces an offer.
func (p ID) Outranks(other ID) bool {
	return p.Num > other.Num
}

// Equal compares by numeric identity only. Handles may change.
func (p ID) Equal(other ID) bool {
	return p.Num == other.Num
}

// String formats the identity for logs.
func (p ID) String() string {
	return fmt.Sprintf("%s#%d", p.Handle, p.Num)
}
