package imports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/frete360/frete_backend/models"
	"github.com/frete360/frete_backend/registry"
	"github.com/frete360/frete_backend/testutil"
	"github.com/frete360/frete_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newImporter(t *testing.T) *Importer {
	t.Helper()
	store := models.NewStore(testutil.OpenDB(t))
	ctx := context.Background()
	require.NoError(t, store.CreateVehicle(ctx, &models.Vehicle{Code: "TRUCK001", Plate: "ABC-1D23", Type: "Carreta", Active: true}))
	require.NoError(t, store.CreateVehicle(ctx, &models.Vehicle{Code: "64", Plate: "QWE4R56", Type: "Truck", Active: true}))
	require.NoError(t, store.UpsertFareParameters(ctx, []models.FareParameter{
		{City: "Belo Horizonte", VehicleType: "Carreta", BaseValue: decimal.NewFromInt(2200), DistanceKm: 350},
		{City: "Curitiba", VehicleType: "Truck", BaseValue: decimal.NewFromInt(1500), DistanceKm: 410},
	}))

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	return NewImporter(registry.NewService(store), quiet)
}

func TestReadTable_CSVSemicolonAndCaseInsensitiveHeaders(t *testing.T) {
	data := "\xef\xbb\xbfcod_veiculo; PLACA ;TipoVeiculo\nTRUCK009;AAA1B22;Toco\n"
	tbl, err := readTable("veiculos.csv", strings.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, tbl.require("COD_Veiculo", "Placa", "TipoVeiculo"))
	require.Len(t, tbl.rows, 1)
	assert.Equal(t, "AAA1B22", tbl.cell(tbl.rows[0], "Placa"))
	assert.Equal(t, "", tbl.cell(tbl.rows[0], "Motorista"))

	err = tbl.require("Ativo", "Motorista")
	var ve *utils.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Message, "Ativo, Motorista")
}

func TestReadTable_RejectsUnknownExtension(t *testing.T) {
	_, err := readTable("dados.pdf", strings.NewReader("x"))
	var ve *utils.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestImportSpreadsheet_VehiclesUpsertAndLineErrors(t *testing.T) {
	im := newImporter(t)
	ctx := context.Background()

	csv := strings.Join([]string{
		"COD_Veiculo,Placa,TipoVeiculo,Motorista,CapacidadeKG,Ativo",
		"TRUCK001,ABC1D23,Truck,Ana,12000,S",
		"TRUCK010,XYZ9K88,Toco,,8000,nao",
		",NOPE000,Toco,,,",
		"TRUCK011,KLM1N23,Toco,,abc,",
		"TRUCK010,XYZ9K88,Toco,,,",
		"",
	}, "\n")
	res, err := im.ImportSpreadsheet(ctx, KindVehicles, "veiculos.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	require.Len(t, res.Errors, 3)
	assert.True(t, strings.HasPrefix(res.Errors[0], "line 4: "), res.Errors[0])
	assert.True(t, strings.HasPrefix(res.Errors[1], "line 5: "), res.Errors[1])
	assert.True(t, strings.HasPrefix(res.Errors[2], "line 6: "), res.Errors[2])

	updated, err := im.registry.Store().FindVehicleByCode(ctx, "TRUCK001")
	require.NoError(t, err)
	assert.Equal(t, "Truck", updated.Type)
	assert.Equal(t, 12000, updated.CapacityKg)

	added, err := im.registry.Store().FindVehicleByCode(ctx, "TRUCK010")
	require.NoError(t, err)
	assert.False(t, added.Active)
	assert.Equal(t, 8000, added.CapacityKg)
}

func TestImportSpreadsheet_CargoFromXLSX(t *testing.T) {
	im := newImporter(t)
	ctx := context.Background()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"NumeroCarga", "Cidade", "ValorCTE", "DataCTE", "COD_Veiculo"},
		{"5001", "Belo Horizonte", "1.234,56", "2024-05-20", "TRUCK001"},
		{"5002", "Curitiba", 980.1, 45433, "64"},
		{"5003", "Curitiba", "10", "2024-05-20", "GHOST"},
		{"5001", "Belo Horizonte", "1", "2024-05-20", "TRUCK001"},
		{"5004", "Curitiba", "x", "2024-05-20", "64"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	res, err := im.ImportSpreadsheet(ctx, KindCargo, "cargas.xlsx", buf)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	require.Len(t, res.Errors, 3)
	assert.Contains(t, res.Errors[0], "line 4: vehicle \"GHOST\"")
	assert.Contains(t, res.Errors[1], "line 5: ")
	assert.Contains(t, res.Errors[1], "line 2")
	assert.Contains(t, res.Errors[2], "line 6: invalid ValorCTE")

	active, err := im.registry.Store().ListActiveCargo(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	byInvoice := map[string]models.CargoRecord{}
	for _, c := range active {
		byInvoice[c.InvoiceNumber] = c
	}
	assert.Equal(t, "1234.56", byInvoice["5001"].Value.String())
	assert.Equal(t, 350, byInvoice["5001"].DistanceKm)
	assert.Equal(t, 410, byInvoice["5002"].DistanceKm)
	assert.Equal(t, time.Date(2024, 5, 21, 0, 0, 0, 0, time.UTC), byInvoice["5002"].InvoiceDate.UTC())
	assert.Equal(t, models.OriginManual, byInvoice["5002"].Origin)

	// a second run finds everything already registered
	buf, err = f.WriteToBuffer()
	require.NoError(t, err)
	res, err = im.ImportSpreadsheet(ctx, KindCargo, "cargas.xlsx", buf)
	require.NoError(t, err)
	assert.Zero(t, res.Count)
	assert.Contains(t, res.Errors[0], "line 2: ")
	assert.Contains(t, res.Errors[0], "already registered")
}

func TestImportSpreadsheet_Parameters(t *testing.T) {
	im := newImporter(t)
	ctx := context.Background()

	fares := "Cidade;TipoVeiculo;ValorBase;KM\nRio de Janeiro;Carreta;1.800,00;450\nBelo Horizonte;Carreta;2300;355\n"
	res, err := im.ImportSpreadsheet(ctx, KindFareParameters, "valores.csv", strings.NewReader(fares))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Empty(t, res.Errors)

	params, err := im.registry.Store().ListFareParameters(ctx)
	require.NoError(t, err)
	assert.Len(t, params, 3)

	fees := "Cidade,Pedagio,Balsa,Ambiental,Chapa,Outras\nBelo Horizonte,50.50,,,100,10\nRio de Janeiro,75,0,20,150,\nVitória,-1,,,,\n"
	res, err = im.ImportSpreadsheet(ctx, KindFeeParameters, "taxas.csv", strings.NewReader(fees))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "line 4: invalid Pedagio")

	stored, err := im.registry.Store().ListFeeParameters(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
}

func TestImportSpreadsheet_MissingColumns(t *testing.T) {
	im := newImporter(t)
	_, err := im.ImportSpreadsheet(context.Background(), KindCargo, "cargas.csv", strings.NewReader("NumeroCarga,Cidade\n1,BH\n"))
	var ve *utils.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Message, "ValorCTE")
}

const cteWithRodo = `<?xml version="1.0" encoding="UTF-8"?>
<cteProc xmlns="http://www.portalfiscal.inf.br/cte" versao="3.00">
  <CTe>
    <infCte Id="CTe3124">
      <ide><nCT>880</nCT><dhEmi>2024-05-20T10:15:00-03:00</dhEmi><xMunIni>Contagem</xMunIni><xMunFim>Sabará</xMunFim></ide>
      <rem><enderReme><xMun>Contagem</xMun></enderReme></rem>
      <dest><enderDest><xMun>Belo Horizonte</xMun></enderDest></dest>
      <vPrest><vTPrest>1500.00</vTPrest><vRec>1450.75</vRec></vPrest>
      <infCTeNorm><infModal versaoModal="3.00"><rodo><veic><placa>abc1d23</placa></veic></rodo></infModal></infCTeNorm>
    </infCte>
  </CTe>
</cteProc>`

const cteWithObservation = `<?xml version="1.0" encoding="UTF-8"?>
<CTe xmlns="http://www.portalfiscal.inf.br/cte">
  <infCte>
    <ide><nCT>881</nCT><dhEmi>2024-05-21T08:00:00-03:00</dhEmi><xMunFim>Curitiba</xMunFim></ide>
    <compl>
      <ObsCont xCampo="OUTROS"><xTexto>Placa: ZZZ9Z99</xTexto></ObsCont>
      <ObsCont xCampo="Dados do Veiculo"><xTexto>Placa: XXX0000 Codigo: 64</xTexto></ObsCont>
    </compl>
    <vPrest><vTPrest>980.10</vTPrest></vPrest>
  </infCte>
</CTe>`

func TestParseCTe(t *testing.T) {
	doc, err := ParseCTe(strings.NewReader(cteWithRodo))
	require.NoError(t, err)
	assert.Equal(t, "880", doc.Number)
	assert.Equal(t, "1450.75", doc.Value, "vRec wins over vTPrest")
	assert.Equal(t, "Belo Horizonte", doc.City, "dest address wins over xMunFim")
	assert.Equal(t, "abc1d23", doc.Plate)

	doc, err = ParseCTe(strings.NewReader(cteWithObservation))
	require.NoError(t, err)
	assert.Equal(t, "980.10", doc.Value)
	assert.Equal(t, "Curitiba", doc.City)
	assert.Equal(t, "XXX0000", doc.Plate)
	assert.Equal(t, "64", doc.VehicleCode)

	_, err = ParseCTe(strings.NewReader(`<NFe><infNFe/></NFe>`))
	var ve *utils.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = ParseCTe(strings.NewReader(`<CTe><infCte><ide><nCT>1</nCT></ide></infCte></CTe>`))
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Message, "dhEmi")
}

func TestImportCTe_ResolvesVehicleAndRejectsDuplicates(t *testing.T) {
	im := newImporter(t)
	ctx := context.Background()

	res, err := im.ImportCTe(ctx, []XMLFile{
		{Name: "880.xml", Body: strings.NewReader(cteWithRodo)},
		{Name: "881.xml", Body: strings.NewReader(cteWithObservation)},
		{Name: "880-copy.xml", Body: strings.NewReader(cteWithRodo)},
		{Name: "broken.xml", Body: strings.NewReader(`<CTe><infCte>`)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	require.Len(t, res.Errors, 2)
	assert.True(t, strings.HasPrefix(res.Errors[0], "880-copy.xml: "), res.Errors[0])
	assert.True(t, strings.HasPrefix(res.Errors[1], "broken.xml: "), res.Errors[1])

	active, err := im.registry.Store().ListActiveCargo(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	byInvoice := map[string]models.CargoRecord{}
	for _, c := range active {
		byInvoice[c.InvoiceNumber] = c
	}
	assert.Equal(t, "TRUCK001", byInvoice["880"].VehicleCode, "resolved by cleaned plate")
	assert.Equal(t, 350, byInvoice["880"].DistanceKm)
	assert.Equal(t, models.OriginXML, byInvoice["880"].Origin)
	assert.Equal(t, time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC), byInvoice["880"].InvoiceDate.UTC())
	assert.Equal(t, "64", byInvoice["881"].VehicleCode, "plate unknown, resolved by code")
}

func TestImportCTe_UnknownVehicle(t *testing.T) {
	im := newImporter(t)
	doc := strings.Replace(cteWithRodo, "abc1d23", "GGG7G77", 1)
	res, err := im.ImportCTe(context.Background(), []XMLFile{{Name: "a.xml", Body: strings.NewReader(doc)}})
	require.NoError(t, err)
	assert.Zero(t, res.Count)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "plate GGG7G77")
}

func TestHandlers_Multipart(t *testing.T) {
	gin.SetMode(gin.TestMode)
	im := newImporter(t)
	r := gin.New()
	RegisterRoutes(r.Group("/api"), im)

	upload := func(path, field string, files map[string]string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		for name, content := range files {
			fw, err := mw.CreateFormFile(field, name)
			require.NoError(t, err)
			_, err = fw.Write([]byte(content))
			require.NoError(t, err)
		}
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, path, &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := upload("/api/import/cte", "files", map[string]string{"880.xml": cteWithRodo})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Count)

	w = upload("/api/import/parametros-taxas", "file", map[string]string{"taxas.csv": "Cidade,Pedagio\nBelo Horizonte,50.50\n"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = upload("/api/import/boletos", "file", map[string]string{"x.csv": "a\n"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
