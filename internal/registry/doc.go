// Package registry persists the entities and devices the bridge exposes.
//
// Records live in SQLite behind Repository. Registry keeps a write-through
// cache so the API and the MQTT layer can read without hitting the
// database; every read returns a deep copy.
package registry
