package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"testing"
	"time"

	"registration-service/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleRows() []models.ExportRow {
	idx := 0
	name := "홍길동"
	primary, completed := true, false
	return []models.ExportRow{
		{
			OrderID: 1, BuyerName: "홍길동", BuyerEmail: "a@example.com", Course: "10K",
			TotalParticipants: 2, BuyerTotalParticipants: 3, TotalAmount: 20000,
			ParticipantIndex: &idx, Name: &name, IsPrimary: &primary, IsCompleted: &completed,
		},
		{OrderID: 2, BuyerName: "김철수", IsCancelled: true},
	}
}

func TestRecord(t *testing.T) {
	rows := sampleRows()
	rec := Record(rows[0])
	require.Len(t, rec, len(Headers))
	assert.Equal(t, "1", rec[0])
	assert.Equal(t, "3", rec[7])
	assert.Equal(t, "N", rec[9])
	assert.Equal(t, "1", rec[15], "participant numbers are 1-based")
	assert.Equal(t, "Y", rec[24])
	assert.Equal(t, "N", rec[25])

	rec = Record(rows[1])
	assert.Equal(t, "Y", rec[9])
	assert.Empty(t, rec[15])
	assert.Equal(t, "N", rec[24])
}

func TestRenderCSV(t *testing.T) {
	body, err := Render(sampleRows(), FormatCSV)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}))

	records, err := csv.NewReader(bytes.NewReader(body[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Headers, records[0])
	assert.Equal(t, "김철수", records[2][1])
}

func TestRenderXLSX(t *testing.T) {
	body, err := Render(sampleRows(), FormatXLSX)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "주문ID", rows[0][0])
	assert.Equal(t, "홍길동", rows[1][1])
}

func TestRenderUnknownFormat(t *testing.T) {
	_, err := Render(nil, "pdf")
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "participants_multi_20260301_093000.xlsx", FileName("multi", FormatXLSX, ts))
	assert.Equal(t, "text/csv; charset=utf-8", ContentType(FormatCSV))
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3ArchiverUpload(t *testing.T) {
	fake := &fakeS3{}
	a := &S3Archiver{client: fake, bucket: "exports", region: "ap-northeast-2", prefix: "registration"}

	url, err := a.Upload(context.Background(), "x.csv", []byte("data"), "text/csv")
	require.NoError(t, err)
	assert.Equal(t, "https://exports.s3.ap-northeast-2.amazonaws.com/registration/x.csv", url)
	assert.Equal(t, "registration/x.csv", *fake.input.Key)
	assert.Equal(t, []byte("data"), fake.body)
}
