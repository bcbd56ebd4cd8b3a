// Package history keeps a local audit trail of link status notifications.
//
// Every Status the controller emits becomes one link_events row, so
// "when did the unit stop answering?" can be answered after the fact even
// without InfluxDB. Rows are written off the notification path by Recorder
// and read back newest-first by SQLiteRepository.Recent.
package history
