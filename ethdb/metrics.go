package ethdb

import "github.com/rcrowley/go-metrics"

var (
	GetTimer        = metrics.NewRegisteredTimer("ethdb/get/time", nil)
	PutTimer        = metrics.NewRegisteredTimer("ethdb/put/time", nil)
	DeleteTimer     = metrics.NewRegisteredTimer("ethdb/delete/time", nil)
	BatchWriteTimer = metrics.NewRegisteredTimer("ethdb/batch/write/time", nil)
)
