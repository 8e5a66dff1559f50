package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"medcal/internal/model"
)

func TestSubcommandsRegistered(t *testing.T) {
	for _, path := range [][]string{
		{"serve"}, {"events"}, {"add-course"}, {"register"}, {"sync-google"},
		{"drugs", "list"}, {"drugs", "add"}, {"drugs", "update"}, {"drugs", "delete"},
	} {
		cmd, _, err := rootCmd.Find(path)
		if assert.NoError(t, err, path) {
			assert.Equal(t, path[len(path)-1], cmd.Name())
		}
	}
}

func TestCheckDrugInput(t *testing.T) {
	ok := model.DrugInput{Name: "Парацетамол", Dosage: 500, Frequency: 3, Interval: 8}
	assert.NoError(t, checkDrugInput(ok))

	bad := ok
	bad.Name = "  "
	assert.ErrorContains(t, checkDrugInput(bad), "--name")

	bad = ok
	bad.Interval = 0
	assert.ErrorContains(t, checkDrugInput(bad), "--interval")
}
