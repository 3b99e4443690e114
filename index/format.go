package index

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/dcarrero/mboxshell/errs"
)

// magic identifies an mboxshell index file.
var magic = [8]byte{'M', 'B', 'I', 'D', 'X', 0, 0, 1}

// FormatVersion is the on-disk format version written and required on
// load.
const FormatVersion uint16 = 1

// BuilderVersion is recorded in the header so a future builder revision
// can recognize (and choose to rebuild) indexes written by an older one,
// independent of the wire FormatVersion.
const BuilderVersion uint32 = 1

// File is a loaded index: the header identity plus every record, held
// entirely resident in memory for the lifetime of the open archive.
type File struct {
	Fingerprint Fingerprint
	BuilderVer  uint32
	CreatedAtNs int64
	Records     []Record
}

// Write serializes recs to path atomically: it writes to path+".tmp" and
// renames over path, removing the temporary file on any error before the
// rename.
func Write(path string, fp Fingerprint, createdAtNs int64, recs []Record) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	succeeded := false
	defer func() {
		f.Close()
		if !succeeded {
			os.Remove(tmp)
		}
	}()

	if err := writeIndex(f, fp, createdAtNs, recs); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	succeeded = true
	return nil
}

func writeIndex(w io.Writer, fp Fingerprint, createdAtNs int64, recs []Record) error {
	h := sha256.New()
	tee := io.MultiWriter(w, h)

	if _, err := tee.Write(magic[:]); err != nil {
		return err
	}
	if err := binary.Write(tee, binary.LittleEndian, FormatVersion); err != nil {
		return err
	}
	if err := binary.Write(tee, binary.LittleEndian, uint16(0)); err != nil { // flags, reserved
		return err
	}
	if err := binary.Write(tee, binary.LittleEndian, uint64(len(recs))); err != nil {
		return err
	}

	hdrBlob := encodeHeaderBlob(fp, createdAtNs)
	if err := binary.Write(tee, binary.LittleEndian, uint32(len(hdrBlob))); err != nil {
		return err
	}
	if _, err := tee.Write(hdrBlob); err != nil {
		return err
	}

	for i := range recs {
		body := encodeRecord(&recs[i])
		if err := binary.Write(tee, binary.LittleEndian, uint32(len(body))); err != nil {
			return err
		}
		if _, err := tee.Write(body); err != nil {
			return err
		}
	}

	// Trailer covers every byte written so far and is itself excluded
	// from the digest: SHA-256 over [0, trailer_offset).
	if _, err := w.Write(h.Sum(nil)); err != nil {
		return err
	}
	return nil
}

func encodeHeaderBlob(fp Fingerprint, createdAtNs int64) []byte {
	var b bytes.Buffer
	writeString(&b, fp.Path)
	binary.Write(&b, binary.LittleEndian, uint64(fp.Size))
	binary.Write(&b, binary.LittleEndian, fp.MtimeNs)
	b.Write(fp.Digest[:])
	binary.Write(&b, binary.LittleEndian, BuilderVersion)
	binary.Write(&b, binary.LittleEndian, createdAtNs)
	return b.Bytes()
}

func encodeRecord(r *Record) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, r.ID)
	binary.Write(&b, binary.LittleEndian, r.Offset)
	binary.Write(&b, binary.LittleEndian, r.Length)
	binary.Write(&b, binary.LittleEndian, r.Size)
	hasDate := uint8(0)
	if r.HasDate {
		hasDate = 1
	}
	b.WriteByte(hasDate)
	var dateNs int64
	if r.HasDate {
		dateNs = r.Date.UnixNano()
	}
	binary.Write(&b, binary.LittleEndian, dateNs)
	writeString(&b, r.FromAddr)
	writeString(&b, r.FromName)
	writeStringList(&b, r.ToAddrs)
	writeStringList(&b, r.CcAddrs)
	writeString(&b, r.Subject)
	hasAttach := uint8(0)
	if r.HasAttachment {
		hasAttach = 1
	}
	b.WriteByte(hasAttach)
	writeStringList(&b, r.Labels)
	writeString(&b, r.MessageID)
	writeString(&b, r.InReplyTo)
	writeString(&b, r.References)
	binary.Write(&b, binary.LittleEndian, uint32(r.Flags))
	return b.Bytes()
}

func writeString(b *bytes.Buffer, s string) {
	binary.Write(b, binary.LittleEndian, uint32(len(s)))
	b.WriteString(s)
}

func writeStringList(b *bytes.Buffer, list []string) {
	binary.Write(b, binary.LittleEndian, uint32(len(list)))
	for _, s := range list {
		writeString(b, s)
	}
}

// Load reads and validates an index file against the current fingerprint
// of its archive: magic, version, and fingerprint are checked first, then
// the trailer digest is verified. Any mismatch yields an
// *errs.IndexStaleError or *errs.IndexCorruptError.
func Load(path, archivePath string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data, archivePath)
}

func parse(data []byte, archivePath string) (*File, error) {
	if len(data) < 8+2+2+8+4+32 {
		return nil, &errs.IndexCorruptError{Archive: archivePath, Reason: "file too short"}
	}
	r := bytes.NewReader(data)

	var gotMagic [8]byte
	io.ReadFull(r, gotMagic[:])
	if gotMagic != magic {
		return nil, &errs.IndexCorruptError{Archive: archivePath, Reason: "bad magic"}
	}

	var version, flags uint16
	binary.Read(r, binary.LittleEndian, &version)
	binary.Read(r, binary.LittleEndian, &flags)
	if version != FormatVersion {
		return nil, &errs.IndexCorruptError{Archive: archivePath, Reason: fmt.Sprintf("unsupported version %d", version)}
	}

	var recordCount uint64
	binary.Read(r, binary.LittleEndian, &recordCount)

	var headerLen uint32
	binary.Read(r, binary.LittleEndian, &headerLen)
	hdrBlob := make([]byte, headerLen)
	if _, err := io.ReadFull(r, hdrBlob); err != nil {
		return nil, &errs.IndexCorruptError{Archive: archivePath, Reason: "truncated header"}
	}
	fp, builderVer, createdAtNs, err := decodeHeaderBlob(hdrBlob)
	if err != nil {
		return nil, &errs.IndexCorruptError{Archive: archivePath, Reason: err.Error()}
	}

	current, err := Compute(archivePath)
	if err != nil {
		return nil, err
	}
	if !fp.Equal(current) {
		return nil, &errs.IndexStaleError{Archive: archivePath, Reason: "archive fingerprint changed"}
	}

	trailerOffset := len(data) - 32
	if trailerOffset < 0 {
		return nil, &errs.IndexCorruptError{Archive: archivePath, Reason: "missing trailer"}
	}
	gotTrailer := data[trailerOffset:]
	sum := sha256.Sum256(data[:trailerOffset])
	if !bytes.Equal(sum[:], gotTrailer) {
		return nil, &errs.IndexCorruptError{Archive: archivePath, Reason: "trailer digest mismatch"}
	}

	recs := make([]Record, 0, recordCount)
	for i := uint64(0); i < recordCount; i++ {
		var bodyLen uint32
		if err := binary.Read(r, binary.LittleEndian, &bodyLen); err != nil {
			return nil, &errs.IndexCorruptError{Archive: archivePath, Reason: "truncated record length"}
		}
		body := make([]byte, bodyLen)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, &errs.IndexCorruptError{Archive: archivePath, Reason: "truncated record body"}
		}
		rec, err := decodeRecord(body)
		if err != nil {
			return nil, &errs.IndexCorruptError{Archive: archivePath, Reason: err.Error()}
		}
		recs = append(recs, rec)
	}

	return &File{Fingerprint: fp, BuilderVer: builderVer, CreatedAtNs: createdAtNs, Records: recs}, nil
}

func decodeHeaderBlob(b []byte) (fp Fingerprint, builderVer uint32, createdAtNs int64, err error) {
	r := bytes.NewReader(b)
	path, err := readString(r)
	if err != nil {
		return fp, 0, 0, err
	}
	var size uint64
	if err = binary.Read(r, binary.LittleEndian, &size); err != nil {
		return
	}
	var mtimeNs int64
	if err = binary.Read(r, binary.LittleEndian, &mtimeNs); err != nil {
		return
	}
	var digest [32]byte
	if _, err = io.ReadFull(r, digest[:]); err != nil {
		return
	}
	if err = binary.Read(r, binary.LittleEndian, &builderVer); err != nil {
		return
	}
	if err = binary.Read(r, binary.LittleEndian, &createdAtNs); err != nil {
		return
	}
	fp = Fingerprint{Path: path, Size: int64(size), MtimeNs: mtimeNs, Digest: digest}
	return fp, builderVer, createdAtNs, nil
}

func decodeRecord(b []byte) (Record, error) {
	r := bytes.NewReader(b)
	var rec Record
	binary.Read(r, binary.LittleEndian, &rec.ID)
	binary.Read(r, binary.LittleEndian, &rec.Offset)
	binary.Read(r, binary.LittleEndian, &rec.Length)
	binary.Read(r, binary.LittleEndian, &rec.Size)
	hasDate, err := r.ReadByte()
	if err != nil {
		return rec, err
	}
	var dateNs int64
	if err := binary.Read(r, binary.LittleEndian, &dateNs); err != nil {
		return rec, err
	}
	if hasDate == 1 {
		rec.HasDate = true
		rec.Date = timeFromUnixNano(dateNs)
	}
	if rec.FromAddr, err = readString(r); err != nil {
		return rec, err
	}
	if rec.FromName, err = readString(r); err != nil {
		return rec, err
	}
	if rec.ToAddrs, err = readStringList(r); err != nil {
		return rec, err
	}
	if rec.CcAddrs, err = readStringList(r); err != nil {
		return rec, err
	}
	if rec.Subject, err = readString(r); err != nil {
		return rec, err
	}
	hasAttach, err := r.ReadByte()
	if err != nil {
		return rec, err
	}
	rec.HasAttachment = hasAttach == 1
	if rec.Labels, err = readStringList(r); err != nil {
		return rec, err
	}
	if rec.MessageID, err = readString(r); err != nil {
		return rec, err
	}
	if rec.InReplyTo, err = readString(r); err != nil {
		return rec, err
	}
	if rec.References, err = readString(r); err != nil {
		return rec, err
	}
	var flags uint32
	if err := binary.Read(r, binary.LittleEndian, &flags); err != nil {
		return rec, err
	}
	rec.Flags = Flags(flags)
	return rec, nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readStringList(r *bytes.Reader) ([]string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
