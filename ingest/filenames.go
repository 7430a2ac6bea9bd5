package ingest

import (
	"fmt"
	"time"
)

// LogType distinguishes the two per-hour streams a datasource produces.
type LogType string

const (
	LogTypePackets LogType = "raw"
	// LogTypeConfirmationsCSV and LogTypeConfirmationsJSON are the two
	// names scamper's confirmation stream is filed under, depending on
	// which wire format it was written in.
	LogTypeConfirmationsCSV  LogType = "scamper"
	LogTypeConfirmationsJSON LogType = "scamper-responses"
)

// ConfirmationLogType picks the right confirmation log type name for the
// wire format in use.
func ConfirmationLogType(csv bool) LogType {
	if csv {
		return LogTypeConfirmationsCSV
	}
	return LogTypeConfirmationsJSON
}

// Proto is the transport an hourly stream was filtered to; "any" spans all
// of them in a single file.
type Proto string

const (
	ProtoAny  Proto = "any"
	ProtoTCP  Proto = "tcp"
	ProtoUDP  Proto = "udp"
	ProtoICMP Proto = "icmp"
)

// LocalFilename builds the on-disk name of the hourly log file for hour,
// following the schema the honeypot's own writer uses:
//
//	YYYY-MM-DD.HH:MM:SS.<datasource>.spoki.<proto>.<logtype>.<unixts>.<ending>[.gz]
func LocalFilename(hour time.Time, datasource string, proto Proto, logType LogType, compressed, csv bool) string {
	dateStr := hour.UTC().Format("2006-01-02.15:04:05")
	unixTS := hour.UTC().Unix()
	ending := "json"
	if csv {
		ending = "csv"
	}
	name := fmt.Sprintf("%s.%s.spoki.%s.%s.%d.%s", dateStr, datasource, proto, logType, unixTS, ending)
	if compressed {
		name += ".gz"
	}
	return name
}

// ObjectStoreKey builds the S3 object key for the same hourly file, laid
// out by partition so a lifecycle policy or Athena-style query can scan by
// date range without listing the whole bucket.
func ObjectStoreKey(hour time.Time, datasource string, proto Proto, logType LogType, csv bool) string {
	hour = hour.UTC()
	unixTS := hour.Unix()
	ending := "json"
	if csv {
		ending = "csv"
	}
	datePart := hour.Format("year=2006/month=01/day=02")
	return fmt.Sprintf(
		"datasource=%s/protocol=%s/type=%s/%s/%s.spoki.%s.%s.%d.%s.gz",
		datasource, proto, logType, datePart, datasource, proto, logType, unixTS, ending,
	)
}
