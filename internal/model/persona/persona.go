package persona

// DefaultID is the assistant the marketing site ships with.
const DefaultID = "pixelforge-assistant"

// Persona captures the assistant identity exposed to the widget.
type Persona struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Title        string `json:"title"`
	Tone         string `json:"tone"`
	Greeting     string `json:"greeting"`
	Placeholder  string `json:"placeholder"`
	ContactEmail string `json:"contactEmail"`
	Description  string `json:"description,omitempty"`
}

// Seed provides the personas available out of the box.
func Seed() []Persona {
	return []Persona{
		{
			ID:           DefaultID,
			Name:         "PixelForge Studio",
			Title:        "AI Assistant",
			Tone:         "professional yet friendly",
			Greeting:     "Hello! I'm PixelForge Studio's AI assistant. I can help you learn about our services, portfolio, process, and more. How can I assist you today?",
			Placeholder:  "Ask about our services...",
			ContactEmail: "contact@pixelforgestudio.com",
			Description:  "A modern creative digital agency specializing in web design, development, and digital solutions.",
		},
	}
}
