package task

// Evidence is the bundle of proof attached to a completed instance. Which
// fields are required depends on the definition: RequiresValidation demands
// before/after photos, RequiresScan demands a scan code plus scan photo.
type Evidence struct {
	Notes          string `json:"notes,omitempty"`
	PhotoBeforeURL string `json:"photo_before_url,omitempty"`
	PhotoAfterURL  string `json:"photo_after_url,omitempty"`
	ScanCode       string `json:"scan_code,omitempty"`
	ScanPhotoURL   string `json:"scan_photo_url,omitempty"`
}

// IsZero reports whether the bundle carries nothing at all.
func (e Evidence) IsZero() bool {
	return e == Evidence{}
}

// missingFor lists the evidence fields a definition demands that this bundle
// does not carry.
func (e Evidence) missingFor(def Definition) []string {
	var missing []string
	if def.RequiresValidation {
		if e.PhotoBeforeURL == "" {
			missing = append(missing, "photo_before_url")
		}
		if e.PhotoAfterURL == "" {
			missing = append(missing, "photo_after_url")
		}
	}
	if def.RequiresScan {
		if e.ScanCode == "" {
			missing = append(missing, "scan_code")
		}
		if e.ScanPhotoURL == "" {
			missing = append(missing, "scan_photo_url")
		}
	}
	return missing
}
