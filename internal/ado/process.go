package ado

import "strings"

// Process template names returned by InferProcessTemplate.
const (
	ProcessBasic  = "Basic"
	ProcessScrum  = "Scrum"
	ProcessAgile  = "Agile"
	ProcessCMMI   = "CMMI"
	ProcessCustom = "Custom"
)

// InferProcessTemplate guesses the project's process from its work item type
// names. The checks run in a fixed order; the first match wins.
func InferProcessTemplate(types []string) string {
	has := make(map[string]bool, len(types))
	for _, t := range types {
		has[strings.ToLower(t)] = true
	}
	switch {
	case has["issue"] && !has["user story"] && !has["product backlog item"]:
		return ProcessBasic
	case has["product backlog item"] || has["impediment"]:
		return ProcessScrum
	case has["user story"]:
		return ProcessAgile
	case has["requirement"] || has["risk"] || has["review"] || has["change request"]:
		return ProcessCMMI
	}
	return ProcessCustom
}
