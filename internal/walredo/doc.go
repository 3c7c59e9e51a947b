// Package walredo rebuilds page images by replaying WAL records.
//
// A Manager turns a base image plus the records that follow it into the
// page as of a target LSN. Applier is the in-process implementation: the
// main data of each record is a list of byte patches
//
//	offset uint16 | length uint16 | length bytes
//
// (big endian) applied in order to the 8 KiB page. A record with WillInit
// set starts from a zero page instead of the previous image.
//
// One Manager is built per repository initialization and shared by the
// backend for all pages.
package walredo
