package admin

// Diff возвращает, кого добавить и кого убрать, чтобы current стал равен selected.
// Порядок следует входным спискам, повторы игнорируются.
func Diff(current, selected []string) (add, remove []string) {
	have := make(map[string]struct{}, len(current))
	for _, id := range current {
		have[id] = struct{}{}
	}
	want := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		if id == "" {
			continue
		}
		if _, dup := want[id]; dup {
			continue
		}
		want[id] = struct{}{}
		if _, ok := have[id]; !ok {
			add = append(add, id)
		}
	}
	seen := make(map[string]struct{}, len(current))
	for _, id := range current {
		if _, ok := want[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		remove = append(remove, id)
	}
	return add, remove
}
