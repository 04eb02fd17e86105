package fixes

// NewDefaultRegistry builds the registry every llamabridge instance starts
// with: the bad-filepath fix (mandatory baseline, removing duplicates) is
// registered first since it's the cheapest and most common repair, then
// the null-index and argument-key-recovery fixes. All three start enabled;
// config can disable any of them by name.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewBadFilepathFix(true))
	r.Register(NewNullIndexFix())
	r.Register(NewArgumentKeyRecoveryFix())
	return r
}
