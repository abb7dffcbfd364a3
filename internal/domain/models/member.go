package models

// Member is a cooperative member who supplies milk.
type Member struct {
	CustNo   int    `json:"custNo"`
	NameEn   string `json:"name_en"`
	NameTel  string `json:"name_tel"`
	Village  string `json:"village"`
	MobileNo string `json:"mobileNo,omitempty"`
	IsActive bool   `json:"isActive"`
}

// MemberInput carries the editable member fields. custNo is never editable.
type MemberInput struct {
	NameEn   string `json:"name_en" binding:"required"`
	NameTel  string `json:"name_tel"`
	Village  string `json:"village"`
	MobileNo string `json:"mobileNo"`
	IsActive *bool  `json:"isActive"`
}

// NormalizePhone strips everything but digits and prefixes countryCode to
// bare 10-digit national numbers.
func NormalizePhone(raw, countryCode string) string {
	digits := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			digits = append(digits, raw[i])
		}
	}
	if len(digits) == 10 {
		return countryCode + string(digits)
	}
	return string(digits)
}
