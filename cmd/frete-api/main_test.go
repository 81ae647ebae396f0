package main

import (
	"testing"

	"github.com/frete360/frete_backend/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestSQLHandle_ReturnsPool(t *testing.T) {
	logger, hook := test.NewNullLogger()
	db := testutil.OpenDB(t)

	assert.NotNil(t, sqlHandle(logger, db))
	assert.Empty(t, hook.AllEntries())
}

func TestSQLHandle_LogsWhenGormHasNoPool(t *testing.T) {
	logger, hook := test.NewNullLogger()

	assert.Nil(t, sqlHandle(logger, &gorm.DB{Config: &gorm.Config{}}))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "sqlHandle", entry.Data["funcName"])
	assert.Equal(t, gorm.ErrInvalidDB.Error(), entry.Message)
}
