// Package fixtures holds the sample catalog used by tests: 14 games, every
// one of them in the single genre "Action".
package fixtures

import _ "embed"

//go:embed games.csv
var GamesCSV []byte

const GamesCount = 14
