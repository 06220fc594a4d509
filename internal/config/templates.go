package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/klemjul/promptforge/internal/errs"
	"github.com/klemjul/promptforge/internal/prompt"
)

const (
	TemplateRefine = "refine"
	TemplateLab    = "lab"
)

var Templates = map[string]string{
	TemplateRefine: "You are an expert at refining prompts for large language models. " +
		"Analyze the following prompt given by the user:\n\n" +
		"Prompt: {user_prompt}\n\n" +
		"Provide feedback on how to make this prompt more effective, along with " +
		"examples of improved versions. Consider:\n" +
		"1. Clarity and specificity\n" +
		"2. Context and constraints\n" +
		"3. Format and structure\n" +
		"4. Potential ambiguities\n",

	TemplateLab: "You are an expert in crafting detailed, accurate, and user-friendly responses for laboratory experiments.\n" +
		"Analyze the following experiment-related prompt:\n\n" +
		"Prompt: {user_prompt}\n\n" +
		"Provide a comprehensive response covering the following aspects:\n" +
		"1. Objective: Clearly define the purpose of the experiment.\n" +
		"2. Components and Materials Required: Provide a detailed list of all components, equipment, and materials needed, including specifications where applicable.\n" +
		"3. Step-by-Step Procedure: Outline the procedure in clear, sequential steps, ensuring it is easy to follow for the intended audience.\n" +
		"4. Safety and Security Measures: List all safety precautions and protocols to follow during the experiment to ensure safety in the laboratory. Also mentions hazards involved and BSL level.\n" +
		"5. How to Use Links and Source Materials: Suggest reliable online resources or references for understanding key concepts, sourcing materials, or troubleshooting issues.\n" +
		"6. Additional Notes: Include tips, best practices, or potential challenges to consider during the experiment.\n\n" +
		"Response Example:\n" +
		"Based on the query, generate a structured response with headings like:\n" +
		"- Objective\n" +
		"- Materials Required\n" +
		"- Procedure\n" +
		"- Safety Precautions\n" +
		"- Additional Notes\n" +
		"In case of invalid details shared, ask the user to reframe their words.",
}

// ResolveTemplate turns the template setting into a validated template.
//
//   - "" selects the refine template
//   - a built-in name or a name of the named map selects that text
//   - a number n reads the TEMPLATE_<n> key through lookup
//   - anything else is the template text itself
func ResolveTemplate(value string, lookup func(key string) string, named map[string]string) (*prompt.Template, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = TemplateRefine
	}

	if text, ok := Templates[value]; ok {
		return prompt.NewTemplate(value, text)
	}
	if text, ok := named[value]; ok {
		return prompt.NewTemplate(value, text)
	}
	if n, err := strconv.Atoi(value); err == nil {
		key := fmt.Sprintf("%s_%v", ENV_TEMPLATE, n)
		text := ""
		if lookup != nil {
			text = lookup(key)
		}
		if text == "" {
			return nil, errs.Configurationf("invalid template no, env variable not found %s", GetEnvWithPrefix(key))
		}
		return prompt.NewTemplate(key, text)
	}
	return prompt.NewTemplate("inline", value)
}
