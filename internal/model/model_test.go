package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDAcceptsStringAndNumber(t *testing.T) {
	var recs []CourseRecord
	err := json.Unmarshal([]byte(`[{"id":5,"name_drug":"A"},{"id":"b7c1","name_drug":"B"},{"id":null}]`), &recs)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, ID("5"), recs[0].ID)
	assert.Equal(t, ID("b7c1"), recs[1].ID)
	assert.Equal(t, ID(""), recs[2].ID)
}

func TestIDRejectsObjects(t *testing.T) {
	var rec CourseRecord
	err := json.Unmarshal([]byte(`{"id":{"x":1}}`), &rec)
	assert.Error(t, err)
}

func TestUserTimezoneOptional(t *testing.T) {
	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"id":"u1","email":"a@b.c"}`), &u))
	assert.Nil(t, u.Timezone)

	require.NoError(t, json.Unmarshal([]byte(`{"id":"u1","timezone":3}`), &u))
	require.NotNil(t, u.Timezone)
	assert.Equal(t, 3, *u.Timezone)
}
