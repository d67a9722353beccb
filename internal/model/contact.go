package model

// ContactForm is the payload delivered to the contact webhook.
type ContactForm struct {
	Name        string   `json:"name"`
	Company     string   `json:"company"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Website     string   `json:"website"`
	CompanySize string   `json:"companySize"`
	Budget      string   `json:"budget"`
	Interests   []string `json:"interests"`
	Message     string   `json:"message"`
	Consent     bool     `json:"consent"`
	Timestamp   string   `json:"timestamp"`
	Source      string   `json:"source"`
}
