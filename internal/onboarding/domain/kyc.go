package domain

// KYCStatus is the verification state reported by the KYC directory.
type KYCStatus string

const (
	KYCVerified KYCStatus = "verified"
	KYCPending  KYCStatus = "pending"
	KYCRejected KYCStatus = "rejected"
)

// DirectorDetail is one director row from the MOA or the KYC directory.
type DirectorDetail struct {
	Name         string `json:"name"`
	Designation  string `json:"designation"`
	PANNumber    string `json:"pan_number"`
	Shareholding string `json:"shareholding"`
}

// ShareholdingDetail is one line of the shareholding structure.
type ShareholdingDetail struct {
	ShareholderName string  `json:"shareholder_name"`
	SharePercentage float64 `json:"share_percentage"`
	ShareType       string  `json:"share_type"`
}

// KYCRecord holds identity and compliance data for a business. Document
// uploads build it up piece by piece through Merge.
type KYCRecord struct {
	FullName           string               `json:"full_name,omitempty"`
	BusinessName       string               `json:"business_name,omitempty"`
	RegistrationNumber string               `json:"registration_number,omitempty"`
	GSTNumber          string               `json:"gst_number,omitempty"`
	PANNumber          string               `json:"pan_number,omitempty"`
	Address            string               `json:"address,omitempty"`
	AccountNumber      string               `json:"account_number,omitempty"`
	Status             KYCStatus            `json:"status,omitempty"`
	Directors          []DirectorDetail     `json:"directors,omitempty"`
	Shareholding       []ShareholdingDetail `json:"shareholding,omitempty"`
}

// Clone returns a deep copy. A nil record clones to nil.
func (k *KYCRecord) Clone() *KYCRecord {
	if k == nil {
		return nil
	}
	c := *k
	if k.Directors != nil {
		c.Directors = append([]DirectorDetail(nil), k.Directors...)
	}
	if k.Shareholding != nil {
		c.Shareholding = append([]ShareholdingDetail(nil), k.Shareholding...)
	}
	return &c
}

// Merge overlays every non-empty field of partial onto a copy of k and
// returns the copy. Neither input is modified; a nil k merges onto an empty
// record.
func (k *KYCRecord) Merge(partial *KYCRecord) *KYCRecord {
	out := k.Clone()
	if out == nil {
		out = &KYCRecord{}
	}
	if partial == nil {
		return out
	}

	overlay := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	overlay(&out.FullName, partial.FullName)
	overlay(&out.BusinessName, partial.BusinessName)
	overlay(&out.RegistrationNumber, partial.RegistrationNumber)
	overlay(&out.GSTNumber, partial.GSTNumber)
	overlay(&out.PANNumber, partial.PANNumber)
	overlay(&out.Address, partial.Address)
	overlay(&out.AccountNumber, partial.AccountNumber)
	if partial.Status != "" {
		out.Status = partial.Status
	}
	if len(partial.Directors) > 0 {
		out.Directors = append([]DirectorDetail(nil), partial.Directors...)
	}
	if len(partial.Shareholding) > 0 {
		out.Shareholding = append([]ShareholdingDetail(nil), partial.Shareholding...)
	}
	return out
}

// ShareholdingTotal sums the share percentages. The total is not required to
// be 100; callers only surface a warning when it is not.
func (k *KYCRecord) ShareholdingTotal() float64 {
	if k == nil {
		return 0
	}
	var total float64
	for _, s := range k.Shareholding {
		total += s.SharePercentage
	}
	return total
}
