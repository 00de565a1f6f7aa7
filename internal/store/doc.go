// Package store persists jobs, the fingerprint-keyed manifest cache and share
// tokens in SQLite.
//
// Every stage commit writes the job's manifest, committed stage count and
// progress in one transaction before the job is reported as advanced. The
// cache holds one entry per fingerprint and is replaced by a single upsert
// so readers never observe a mix of two writes. Writers of a fingerprint
// serialize on Locks; reads of a cached entry take no lock.
package store
