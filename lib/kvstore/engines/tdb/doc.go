// Package tdb implements kvstore.IStore on a TDBStore-like vendor layer
// (see the internal package), the storage used by mbed based boards.
//
// The backend is byte-only: typed values go through the byte path and type
// discovery reports blob for every present key. Exists is answered by the
// info query. Every mutation rewrites the area image before returning; a
// damaged image makes Begin fail unless Options.Reformat is set.
package tdb
