package qrep

import (
	"io"

	"github.com/francoispqt/gojay"
)

type statJSON Statistic

func (s statJSON) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Float64Key("mean", s.Mean)
	enc.Float64Key("variance", s.Variance)
	enc.Float64Key("min", s.Min)
	enc.Float64Key("max", s.Max)
}

func (s statJSON) IsNil() bool { return false }

type viewJSON [2]Statistic

func (v viewJSON) MarshalJSONArray(enc *gojay.Encoder) {
	for _, s := range v {
		enc.Object(statJSON(s))
	}
}

func (v viewJSON) IsNil() bool { return false }

// MarshalJSONObject implements gojay.MarshalerJSONObject.
func (r *Report) MarshalJSONObject(enc *gojay.Encoder) {
	enc.IntKey("distance", r.Distance)
	enc.IntKey("trials", r.Trials)
	for _, v := range AllViews {
		enc.ArrayKey(v.String(), viewJSON(r.Stats[v]))
	}
}

func (r *Report) IsNil() bool { return r == nil }

// Reports is a sweep result in ascending order of distance.
type Reports []*Report

// NewReports orders the reports of a sweep by distance.
func NewReports(m map[int]*Report) Reports {
	out := make(Reports, 0, len(m))
	for _, d := range SortedDistances(m) {
		out = append(out, m[d])
	}
	return out
}

func (rs Reports) MarshalJSONArray(enc *gojay.Encoder) {
	for _, r := range rs {
		enc.Object(r)
	}
}

func (rs Reports) IsNil() bool { return rs == nil }

// EncodeJSON writes the reports as a JSON array.
func (rs Reports) EncodeJSON(w io.Writer) error {
	enc := gojay.BorrowEncoder(w)
	defer enc.Release()
	return enc.EncodeArray(rs)
}
