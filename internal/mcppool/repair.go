package mcppool

import "fmt"

// repairPromptTemplate is the canonical format for repair prompts consumed
// by the reasoner when it recovers from a bad tool call on a later
// iteration (§4.4 "the reasoner is expected to recover").
const repairPromptTemplate = `
Operation: %s
Error: %s
Redo the operation now with valid parameters.
Use only fields accepted by the tool's schema.`

func buildRepairHint(op, errMsg string) string {
	return fmt.Sprintf(repairPromptTemplate, op, errMsg)
}
