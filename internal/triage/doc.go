// Package triage drives one pass over the notification inbox: it loads
// policy rules, renders each thread to a document, asks the evaluator for a
// decision and applies, confirms or suppresses the resulting action while
// keeping the run tally.
package triage
