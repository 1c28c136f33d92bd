/*
Package session keeps the per-host session tokens the network client attaches to requests.

A Manager serializes read-modify-write of one host's record with a reference-counted
in-process lock and, when several processes share a store, an optional distributed lock.
*/
package session
