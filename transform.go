package zipshape

// Filter returns the records for which keep reports true, preserving order.
// Unlike FilterEntries it operates on raw records with no awareness of the
// LocalHeader/FileData/DataDescriptor/CentralEntry grouping, so callers that
// drop a LocalHeader without also dropping its FileData can build a
// malformed archive on purpose — useful for exercising a reader's error
// handling (§8 scenario iv, truncated entries).
func Filter(records []Record, keep func(Record) bool) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Map applies fn to every record in order.
func Map(records []Record, fn func(Record) Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = fn(r)
	}
	return out
}

// FlatMap applies fn to every record and concatenates the results, letting a
// single record expand into zero or more records (e.g. splicing in an extra
// entry, or deleting one by returning nil).
func FlatMap(records []Record, fn func(Record) []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		out = append(out, fn(r)...)
	}
	return out
}

// Concat merges two or more archives' record sequences into one valid
// archive, per §4.5: every local-header/FileData/DataDescriptor triple (and
// any Hole) from each input is emitted in input order, followed by every
// input's CentralEntry records in input order, followed by one merged
// EndRecord whose counts, central-directory size, and comment are the sums
// (respectively concatenation) of the inputs'. Per §4.5/§9 Open Question
// (b), any Zip64EndRecord/Zip64EndLocator carried by an input is dropped —
// the caller must re-apply ToZip64 to the concatenation if Zip64 is needed.
func Concat(records []Record, more ...[]Record) []Record {
	archives := append([][]Record{records}, more...)

	var locals []Record
	var centrals []Record
	var merged EndRecord
	for _, archive := range archives {
		for _, r := range archive {
			switch v := r.(type) {
			case CentralEntry:
				centrals = append(centrals, v)
			case Zip64EndRecord, Zip64EndLocator:
				// dropped: see §4.5/§9 Open Question (b).
			case EndRecord:
				merged.EntriesThisDisk += v.EntriesThisDisk
				merged.EntriesTotal += v.EntriesTotal
				merged.CDSize += v.CDSize
				merged.CDOffset += v.CDOffset
				merged.Comment += v.Comment
			default:
				locals = append(locals, r)
			}
		}
	}

	out := make([]Record, 0, len(locals)+len(centrals)+1)
	out = append(out, locals...)
	out = append(out, centrals...)
	out = append(out, merged)
	return out
}

// Rename applies fn to every entry name in the archive — LocalHeader and
// CentralEntry alike — keeping the two records for a given entry in sync,
// since a reader that demands matching names would otherwise reject the
// result outright.
func Rename(records []Record, fn func(name string) string) []Record {
	return Map(records, func(r Record) Record {
		switch v := r.(type) {
		case LocalHeader:
			v.Name = fn(v.Name)
			return v
		case CentralEntry:
			v.Name = fn(v.Name)
			return v
		default:
			return r
		}
	})
}

// FilterEntries keeps only the entries for which keep(header) reports true,
// dropping a rejected entry's LocalHeader, FileData, and (if present)
// DataDescriptor as one unit — and, to preserve the §3 invariant that every
// CentralEntry corresponds to a surviving local-header triple, also drops
// the matching CentralEntry later in the sequence. A literal reading of
// "drop as a unit" would leave a dangling CentralEntry pointing at nothing;
// this extends the combinator to keep the archive well-formed per that
// invariant, which is also what a human editing a zip by hand would expect
// "delete this file" to mean.
//
// Local headers and central entries are paired by ordinal position, not by
// name, the same way Rederive pairs them (see DESIGN.md "6a"): §3 permits
// duplicate entry names ("tie-breaking by order"), so a name-keyed drop set
// would, for two same-named entries where only one is dropped, either lose
// the surviving entry's CentralEntry or keep the dropped one's.
func FilterEntries(records []Record, keep func(LocalHeader) bool) []Record {
	var dropped []bool
	out := make([]Record, 0, len(records))

	var skipping bool
	centralOrdinal := 0
	for _, r := range records {
		switch v := r.(type) {
		case LocalHeader:
			skipping = !keep(v)
			dropped = append(dropped, skipping)
			if skipping {
				continue
			}
		case FileData:
			if skipping {
				continue
			}
		case DataDescriptor:
			if skipping {
				skipping = false
				continue
			}
		case CentralEntry:
			isDropped := centralOrdinal < len(dropped) && dropped[centralOrdinal]
			centralOrdinal++
			if isDropped {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// ToZip64 upgrades every LocalHeader, CentralEntry, and the trailing
// EndRecord to defer their sizes/offsets/counts to Zip64 records, inserting
// a Zip64EndRecord and Zip64EndLocator ahead of the EndRecord. Forcing this
// regardless of whether any field actually needs the extra range is what
// lets a test build a "valid small Zip64 archive" per §8 scenario ii without
// first growing a multi-gigabyte fixture.
func ToZip64(records []Record) []Record {
	out := make([]Record, 0, len(records)+2)
	for _, r := range records {
		switch v := r.(type) {
		case LocalHeader:
			out = append(out, v.ToZip64())
		case CentralEntry:
			out = append(out, v.ToZip64())
		case DataDescriptor:
			out = append(out, v.ToZip64())
		case EndRecord:
			out = append(out,
				Zip64EndRecord{VersionMadeBy: versionZip64, VersionNeeded: versionZip64},
				Zip64EndLocator{TotalDisks: 1},
				v.ToZip64(),
			)
		default:
			out = append(out, r)
		}
	}
	return out
}
