// Package main provides insightctl, a command line front end for the insight
// report renderer, the report analyzer and the smart scan pipeline.
//
// Usage:
//
//	insightctl render report.json -o report.pdf
//	insightctl analyze lab-results.pdf
//	insightctl scan patient.json --doc https://files.example/labs.pdf
package main

func main() {
	Execute()
}
