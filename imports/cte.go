package imports

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/frete360/frete_backend/models"
	"github.com/frete360/frete_backend/reconcile"
	"github.com/frete360/frete_backend/registry"
	"github.com/frete360/frete_backend/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"
)

const vehicleObservationField = "DADOS DO VEICULO"

var (
	obsPlatePattern = regexp.MustCompile(`(?i)Placa:\s*([A-Z0-9]+)`)
	obsCodePattern  = regexp.MustCompile(`(?i)Codigo:\s*([A-Z0-9]+)`)
)

// CTe holds the fields of a CT-e document needed to register its cargo.
type CTe struct {
	Number      string
	IssuedAt    string
	Value       string
	City        string
	Plate       string
	VehicleCode string
}

type element struct {
	name  string
	field string // xCampo attribute of ObsCont
	text  strings.Builder
}

// ParseCTe walks the document once and keeps the first occurrence of each
// field, matching on local names so namespaced and bare documents both work.
func ParseCTe(r io.Reader) (*CTe, error) {
	var (
		doc        CTe
		isCTe      bool
		stack      []*element
		destCity   string
		endCity    string
		receivable string
		total      string
		trailer    string
		obsText    string
	)

	within := func(names ...string) bool {
		for _, n := range names {
			for _, e := range stack {
				if e.name == n {
					return true
				}
			}
		}
		return false
	}
	setOnce := func(dst *string, v string) {
		if *dst == "" {
			*dst = strings.TrimSpace(v)
		}
	}

	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, utils.NewValidationError("xml", "malformed XML: %v", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			e := &element{name: t.Name.Local}
			if e.name == "cteProc" || e.name == "CTe" {
				isCTe = true
			}
			for _, a := range t.Attr {
				if a.Name.Local == "xCampo" {
					e.field = a.Value
				}
			}
			stack = append(stack, e)
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			e := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			text := e.text.String()

			switch e.name {
			case "nCT":
				setOnce(&doc.Number, text)
			case "dhEmi":
				setOnce(&doc.IssuedAt, text)
			case "vRec":
				setOnce(&receivable, text)
			case "vTPrest":
				setOnce(&total, text)
			case "xMun":
				if within("enderDest") && within("dest") {
					setOnce(&destCity, text)
				}
			case "xMunFim":
				setOnce(&endCity, text)
			case "placa":
				switch {
				case within("veicTracionado"):
					setOnce(&trailer, text)
				case within("veic") && within("rodo", "infModal"):
					setOnce(&doc.Plate, text)
				}
			case "xTexto":
				if len(stack) > 0 {
					parent := stack[len(stack)-1]
					if parent.name == "ObsCont" && strings.EqualFold(strings.TrimSpace(parent.field), vehicleObservationField) {
						setOnce(&obsText, text)
					}
				}
			}
		}
	}

	if !isCTe {
		return nil, utils.NewValidationError("xml", "not a CT-e document")
	}

	doc.Value = receivable
	if doc.Value == "" {
		doc.Value = total
	}
	doc.City = destCity
	if doc.City == "" {
		doc.City = endCity
	}
	if doc.Plate == "" {
		doc.Plate = trailer
	}
	if doc.Plate == "" && obsText != "" {
		if m := obsPlatePattern.FindStringSubmatch(obsText); m != nil {
			doc.Plate = m[1]
		}
	}
	if obsText != "" {
		if m := obsCodePattern.FindStringSubmatch(obsText); m != nil {
			doc.VehicleCode = m[1]
		}
	}

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"nCT", doc.Number}, {"dhEmi", doc.IssuedAt}, {"vRec/vTPrest", doc.Value}, {"city", doc.City},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, utils.NewValidationError("xml", "missing required fields: %s", strings.Join(missing, ", "))
	}
	return &doc, nil
}

// resolveVehicle looks the vehicle up by cleaned plate, then by code.
func resolveVehicle(doc *CTe, vehicles *reconcile.VehicleIndex) (models.Vehicle, bool) {
	if doc.Plate != "" {
		if v, ok := vehicles.ByPlate(doc.Plate); ok {
			return v, true
		}
	}
	if doc.VehicleCode != "" {
		return vehicles.Get(doc.VehicleCode)
	}
	return models.Vehicle{}, false
}

// XMLFile is one uploaded document.
type XMLFile struct {
	Name string
	Body io.Reader
}

// ImportCTe registers one cargo record per document. Each document stands
// alone: a bad file is reported and the others are still imported.
func (im *Importer) ImportCTe(ctx context.Context, files []XMLFile) (*Result, error) {
	if len(files) == 0 {
		return nil, utils.NewValidationError("files", "no XML file uploaded")
	}
	vehicles, err := im.registry.Vehicles(ctx)
	if err != nil {
		return nil, err
	}
	taken, err := im.activeKeys(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{Errors: []string{}}
	fail := func(name, format string, args ...any) {
		res.Errors = append(res.Errors, name+": "+fmt.Sprintf(format, args...))
	}
	for _, f := range files {
		doc, err := ParseCTe(f.Body)
		if err != nil {
			fail(f.Name, "%v", err)
			continue
		}
		value, err := utils.ParseDecimal(doc.Value)
		if err != nil {
			fail(f.Name, "invalid value %q", doc.Value)
			continue
		}
		issued, _, _ := strings.Cut(doc.IssuedAt, "T")
		date, err := utils.ParseDate(issued)
		if err != nil {
			fail(f.Name, "invalid dhEmi %q", doc.IssuedAt)
			continue
		}
		key, err := reconcile.CargoKey(doc.Number, doc.City)
		if err != nil {
			fail(f.Name, "%v", err)
			continue
		}
		if _, dup := taken[key]; dup {
			fail(f.Name, "cargo %s for %s is already registered", doc.Number, doc.City)
			continue
		}
		vehicle, ok := resolveVehicle(doc, vehicles)
		if !ok {
			fail(f.Name, "vehicle not found (plate %s, code %s)", orUnknown(doc.Plate), orUnknown(doc.VehicleCode))
			continue
		}

		_, err = im.registry.CreateCargo(ctx, []registry.CargoInput{{
			InvoiceNumber: doc.Number,
			City:          doc.City,
			Value:         value,
			InvoiceDate:   date,
			VehicleCode:   vehicle.Code,
		}}, models.OriginXML)
		if err != nil {
			fail(f.Name, "%v", err)
			continue
		}
		taken[key] = f.Name
		res.Count++
	}

	im.logger.WithFields(logrus.Fields{
		"module":   "imports",
		"funcName": "ImportCTe",
		"files":    len(files),
		"count":    res.Count,
		"rejected": len(res.Errors),
	}).Info("CT-e import finished")
	return res, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}
