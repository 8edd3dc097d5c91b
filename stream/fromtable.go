package stream

import (
	"github.com/brian-arnold/orcapod/record"
	"github.com/brian-arnold/orcapod/table"
	"github.com/brian-arnold/orcapod/types"
)

// RecordsFromTable reconstructs a []Record from a materialized table, given
// the tag/packet schemas the table was built with. Used on a store cache
// hit, where an operator or pod gets back a *table.Table rather than the
// []Record it originally produced.
func RecordsFromTable(tbl *table.Table, tagSchema, packetSchema types.TypeSpec, dc record.DataContext) ([]Record, error) {
	out := make([]Record, tbl.NumRows())
	for i := 0; i < tbl.NumRows(); i++ {
		row, err := tbl.Row(i)
		if err != nil {
			return nil, err
		}
		tag, err := record.NewTag(tagSchema, row)
		if err != nil {
			return nil, err
		}
		packet, err := record.NewPacket(packetSchema, row, nil, dc)
		if err != nil {
			return nil, err
		}
		out[i] = Record{Tag: tag, Packet: packet}
	}
	return out, nil
}
