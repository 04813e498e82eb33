// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package zipshape decodes a ZIP archive into an ordered sequence of typed
records, lets callers rewrite that sequence with ordinary functions, and
re-encodes it back into bytes.

It exists so that test code which exercises a ZIP reader can build archives
of a precise, possibly invalid, shape — including Zip64 archives, archives
with data descriptors, and archives with deliberately wrong offsets — without
hand-writing little-endian field packing.

	records, err := zipshape.DecodeAll(zipshape.NewMemSource(data))
	records = zipshape.FilterEntries(records, func(h zipshape.LocalHeader) bool {
		return h.Name != "secret.txt"
	})
	var buf bytes.Buffer
	err = zipshape.NewEncoder(&buf, zipshape.EncodeOptions{}).Encode(records)

The package does not compress or decompress file data beyond what is needed
to locate the end of a compressed payload while decoding (see the
discoverCompressedLength helper in inflateskip.go); encryption, disk spanning
and exotic compression methods are not supported. The actual ZIP reader or
writer under test is always an external collaborator — this package only
produces or inspects the bytes it consumes.

See: https://www.pkware.com/appnote, https://pkg.go.dev/archive/zip
*/
package zipshape
