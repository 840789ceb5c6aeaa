package ai

import (
	"fmt"
	"strings"

	"github.com/pixelforge/studio/backend/internal/model/persona"
)

// PromptTemplate defines the structure for persona prompts
type PromptTemplate struct {
	Identity         string
	Role             string
	Responsibilities []string
	TalkingPoints    []string
	Closing          string
}

// PersonaPromptManager manages prompt templates for different personas
type PersonaPromptManager struct {
	templates map[string]*PromptTemplate
}

// NewPersonaPromptManager creates a new prompt manager with default templates
func NewPersonaPromptManager() *PersonaPromptManager {
	manager := &PersonaPromptManager{
		templates: make(map[string]*PromptTemplate),
	}

	manager.loadDefaultTemplates()
	return manager
}

// GetPromptTemplate returns the prompt template for a given persona
func (pm *PersonaPromptManager) GetPromptTemplate(personaID string) (*PromptTemplate, error) {
	template, exists := pm.templates[personaID]
	if !exists {
		return nil, fmt.Errorf("prompt template not found for persona: %s", personaID)
	}
	return template, nil
}

// BuildSystemPrompt creates the system instruction sent ahead of every visitor message
func (pm *PersonaPromptManager) BuildSystemPrompt(p *persona.Persona) string {
	template, err := pm.GetPromptTemplate(p.ID)
	if err != nil {
		return pm.buildBasicSystemPrompt(p)
	}

	responsibilities := make([]string, len(template.Responsibilities))
	for i, item := range template.Responsibilities {
		responsibilities[i] = fmt.Sprintf("%d. %s", i+1, item)
	}

	return fmt.Sprintf(`%s

%s

%s

Key talking points:
- %s

%s`,
		template.Identity,
		template.Role,
		strings.Join(responsibilities, "\n"),
		strings.Join(template.TalkingPoints, "\n- "),
		template.Closing,
	)
}

// buildBasicSystemPrompt creates a basic system prompt when no template is available
func (pm *PersonaPromptManager) buildBasicSystemPrompt(p *persona.Persona) string {
	prompt := fmt.Sprintf(`You are %s's %s. %s

Keep a %s tone, answer questions about the studio and encourage visitors to reach out.`,
		p.Name,
		p.Title,
		p.Description,
		p.Tone,
	)
	if p.ContactEmail != "" {
		prompt += fmt.Sprintf(" Visitors can write to %s.", p.ContactEmail)
	}
	return prompt
}

func (pm *PersonaPromptManager) loadDefaultTemplates() {
	pm.templates[persona.DefaultID] = &PromptTemplate{
		Identity: "You are PixelForge Studio's AI assistant, a creative digital agency specializing in web design, development, and digital solutions.",
		Role:     "Your role is to help potential clients understand our services and capabilities. You should:",
		Responsibilities: []string{
			"**Introduce PixelForge Studio** as a modern creative agency",
			"**Explain our services**: Web Design, UI/UX, Development, Branding, Digital Marketing",
			"**Showcase our expertise** in React, modern technologies, and creative solutions",
			"**Answer questions** about our process, timeline, pricing, and portfolio",
			"**Provide helpful information** about digital transformation and creative solutions",
			"**Be professional yet friendly** - reflect our creative and innovative approach",
			"**Encourage engagement** by suggesting they view our portfolio or contact us",
		},
		TalkingPoints: []string{
			"We create modern, responsive websites with stunning animations",
			"Our team includes designers, developers, and digital marketers",
			"We use cutting-edge technologies like React, Framer Motion, Tailwind CSS",
			"We focus on user experience and creative solutions",
			"We've worked with various industries and can handle complex projects",
		},
		Closing: "Always be helpful, informative, and encourage potential clients to explore our work or get in touch for a consultation.",
	}
}
