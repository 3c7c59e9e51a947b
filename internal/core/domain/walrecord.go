package domain

// WALRecord is one logged change to a single page.
type WALRecord struct {
	// LSN is the end position of the record in the WAL.
	LSN LSN

	// WillInit is set when the record fully initializes the page, so
	// replay does not need any earlier image.
	WillInit bool

	// Rec is the raw record.
	Rec []byte

	// MainDataOffset is the offset within Rec where the record's main
	// data (the part redo interprets) starts.
	MainDataOffset uint32
}

// MainData returns the part of the record redo interprets.
func (r WALRecord) MainData() []byte {
	if int(r.MainDataOffset) > len(r.Rec) {
		return nil
	}
	return r.Rec[r.MainDataOffset:]
}

// ZeroPage returns a new zero-filled page.
func ZeroPage() []byte {
	return make([]byte, PageSize)
}
