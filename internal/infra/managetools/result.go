package managetools

import (
	"fmt"
	"strings"

	"mistmcp/internal/domain"
)

// Result is the structured outcome of one manageMcpTools call.
type Result struct {
	ChangeID  string `json:"change_id"`
	SessionID string `json:"session_id,omitempty"`

	Enabled  []string `json:"enabled_categories,omitempty"`
	Disabled []string `json:"disabled_categories,omitempty"`
	Unknown  []string `json:"unknown_categories,omitempty"`
	Gated    []string `json:"gated_categories,omitempty"`
	Failed   []string `json:"failed_tools,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	ActiveCategories    []string          `json:"active_categories"`
	ActiveTools         []string          `json:"active_tools"`
	AvailableCategories []CategorySummary `json:"available_categories,omitempty"`

	// RequiresConfirmation tells the agent to stop and get an explicit yes/no from the user.
	RequiresConfirmation bool   `json:"requires_confirmation"`
	Message              string `json:"message"`
}

type CategorySummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ToolCount   int    `json:"tool_count"`
	Write       bool   `json:"write,omitempty"`
}

func confirmationMessage(result Result) string {
	var b strings.Builder
	b.WriteString("⚠️ STOP: USER CONFIRMATION REQUIRED ⚠️\n\n")
	b.WriteString("🔧 MCP TOOLS CONFIGURATION COMPLETE 🔧\n\n")
	writeList(&b, "Enabled categories", result.Enabled)
	writeList(&b, "Disabled categories", result.Disabled)
	writeList(&b, "Active categories", result.ActiveCategories)
	fmt.Fprintf(&b, "Tools enabled (%d): %s\n", len(result.ActiveTools), strings.Join(result.ActiveTools, ", "))
	writeWarnings(&b, result.Warnings)
	if len(result.AvailableCategories) > 0 {
		b.WriteString("\n")
		writeCategories(&b, result.AvailableCategories)
	}
	b.WriteString("\nThis tool has completed its configuration. The agent MUST stop here and ask the user for explicit confirmation (yes/no) before proceeding with any other actions.\n\n")
	b.WriteString("AGENT INSTRUCTION: Do not continue with any other tools or actions. Present this message to the user and wait for their explicit confirmation to proceed.")
	return b.String()
}

func listingMessage(result Result) string {
	var b strings.Builder
	writeCategories(&b, result.AvailableCategories)
	if len(result.ActiveCategories) > 0 {
		b.WriteString("\n")
		writeList(&b, "Currently enabled categories", result.ActiveCategories)
	}
	fmt.Fprintf(&b, "\nUse %s(enable_mcp_tools_categories=[...]) to enable a category.", domain.ManageToolsName)
	return b.String()
}

func noSessionMessage(result Result) string {
	var b strings.Builder
	b.WriteString("❌ MCP tools configuration was not applied.\n")
	writeWarnings(&b, result.Warnings)
	fmt.Fprintf(&b, "Tools available: %s", strings.Join(result.ActiveTools, ", "))
	return b.String()
}

func writeList(b *strings.Builder, label string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(values, ", "))
}

func writeWarnings(b *strings.Builder, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	b.WriteString("Warnings:\n")
	for _, warning := range warnings {
		fmt.Fprintf(b, "- %s\n", warning)
	}
}

func writeCategories(b *strings.Builder, categories []CategorySummary) {
	b.WriteString("📋 Available tool categories:\n")
	for _, category := range categories {
		suffix := ""
		if category.Write {
			suffix = " [write]"
		}
		fmt.Fprintf(b, "- %s (%d tools)%s", category.Name, category.ToolCount, suffix)
		if category.Description != "" {
			fmt.Fprintf(b, ": %s", category.Description)
		}
		b.WriteString("\n")
	}
}
