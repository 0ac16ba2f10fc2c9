package task

// EffectiveStatus computes the status shown to users for an instance given
// its direct children. This is the single place the three-way derivation
// rule lives; call sites must not re-derive it.
//
// The rule:
//  1. A definition with an evidence requirement governs itself: the
//     instance's own lifecycle status is authoritative and children never
//     drive it.
//  2. Otherwise, with children present, the parent is completed iff every
//     child's effective status is completed - a strict AND, no partial
//     credit. It is in_progress once any child has moved off pending, and
//     pending before that.
//  3. Otherwise (no requirement, no children) the instance's own lifecycle
//     status stands.
//
// A main instance's visible "done" state comes from its own evidence or
// entirely from its children, never both.
func EffectiveStatus(inst Instance, children []Instance) Status {
	if inst.Definition.SelfGoverned() {
		return inst.Status
	}

	if len(children) == 0 {
		return inst.Status
	}

	allCompleted := true
	anyProgress := false
	for _, child := range children {
		childStatus := EffectiveStatus(child, nil)
		if !childStatus.IsCompleted() {
			allCompleted = false
		}
		if !childStatus.IsPending() {
			anyProgress = true
		}
	}

	switch {
	case allCompleted:
		return StatusCompleted
	case anyProgress:
		return StatusInProgress
	default:
		return StatusPending
	}
}

// InstanceBadge computes the per-instance status badge for a day's
// drill-down list. A main instance gets the effective status derived from
// its children in the set; a sub instance shows its raw lifecycle status.
func InstanceBadge(inst Instance, all []Instance) Status {
	if inst.IsSub() {
		return inst.Status
	}
	return EffectiveStatus(inst, ChildrenOf(all, inst.InstanceID))
}
