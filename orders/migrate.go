package orders

// Legacy roster repairs. They run after every load, so they must be
// idempotent.
const (
	legacyName      = "荒野"
	replacementName = "荒井"
	obsoleteName    = "木井"
)

// Migrate repairs historical roster names in place and reports whether
// anything changed. It must run before the roster is read.
//
// The legacy name is renamed and its ledger entries move to the replacement,
// overwriting any mark the replacement already had on the same day. The
// obsolete name is removed together with its ledger entries.
func Migrate(s *State) bool {
	changed := false

	if s.Roster.rename(legacyName, replacementName) {
		changed = true
	}
	if s.Ledger.hasPerson(legacyName) {
		s.Ledger.movePerson(legacyName, replacementName)
		changed = true
	}

	if s.Roster.remove(obsoleteName) {
		changed = true
	}
	if s.Ledger.hasPerson(obsoleteName) {
		s.Ledger.removePerson(obsoleteName)
		changed = true
	}
	return changed
}
