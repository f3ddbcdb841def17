package app

import "mistmcp/internal/domain"

const managedInstructions = `MANAGED MODE: Only essential tools loaded at startup.

This mode provides only basic essential tools (getSelf, manageMcpTools). Use manageMcpTools to load additional tool categories as needed.

IMPORTANT:
* If the tool requires the ` + "`org_id`" + `, you should be able to get it with the ` + "`getSelf`" + ` tool
* Use ` + "`manageMcpTools`" + ` to load additional tool categories when needed
* If the tool requires the ` + "`site_id`" + `, you will need to load the 'orgs_sites' category first using manageMcpTools
`

const allInstructions = `ALL TOOLS MODE: All available tools are loaded and ready to use.

All tool categories have been pre-loaded, so you can use any Mist API functionality immediately without needing to manage tools.

IMPORTANT:
* If the tool requires the ` + "`org_id`" + `, you should be able to get it with the ` + "`getSelf`" + ` tool
* If the tool requires the ` + "`site_id`" + `, you should be able to get it with the ` + "`searchOrgSites`" + ` tool
`

const customInstructions = `CUSTOM MODE: Tools are selected per request from the "categories" query parameter.

The essential tools (getSelf, manageMcpTools) are always available.
`

// Instructions returns the server instructions sent at initialize for mode.
func Instructions(mode domain.ToolMode) string {
	switch mode {
	case domain.ToolModeAll:
		return allInstructions
	case domain.ToolModeCustom:
		return customInstructions
	default:
		return managedInstructions
	}
}
