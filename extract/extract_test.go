package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proyectohouse/rent-engine/extract"
)

const sampleContract = `CONTRATO DE ARRENDAMIENTO.
Arrendatario: María Clara Rodríguez, C.I. Nro 4.567.890-1.
El precio del arrendamiento se fija en la suma de $ 25.000 mensuales,
pagaderos del 1 al 10 de cada mes.
Garantía: ANDA.`

func TestPropose_FullContract(t *testing.T) {
	fields := extract.Propose(sampleContract)

	assert.Equal(t, "4.567.890-1", fields.TenantDocumentID)
	require.NotNil(t, fields.RentAmount)
	assert.Equal(t, int64(25000), *fields.RentAmount)
	assert.Equal(t, 10, fields.DueDayOfMonth)
	assert.Equal(t, extract.GuaranteeANDA, fields.GuaranteeType)
	assert.Equal(t, "UYU", fields.Currency)
}

func TestPropose_FixedDueDay(t *testing.T) {
	fields := extract.Propose("pagadero el 7 de cada mes, con seguro de alquiler Sura")
	assert.Equal(t, 7, fields.DueDayOfMonth)
	assert.Equal(t, extract.GuaranteeInsurance, fields.GuaranteeType)
}

func TestPropose_DocumentIDStopsAtSentenceEnd(t *testing.T) {
	// The id must not swallow the period that closes the sentence
	fields := extract.Propose("Inquilino con C.I. 1.234.567-8. Domicilio en Montevideo.")
	assert.Equal(t, "1.234.567-8", fields.TenantDocumentID)
}

func TestPropose_ContaduriaBeatsInsurerKeywords(t *testing.T) {
	// A CGN retention stays OTHER even when insurer words appear later
	fields := extract.Propose("Garantía mediante retención de Contaduría General de la Nación, sin seguro adicional")
	assert.Equal(t, extract.GuaranteeOther, fields.GuaranteeType)

	fields = extract.Propose("garantía CGN")
	assert.Equal(t, extract.GuaranteeOther, fields.GuaranteeType)
}

func TestPropose_DepositGuarantee(t *testing.T) {
	fields := extract.Propose("se constituye Depósito en garantía por dos meses")
	assert.Equal(t, extract.GuaranteeDeposit, fields.GuaranteeType)
}

func TestPropose_EmptyTextKeepsDefaults(t *testing.T) {
	fields := extract.Propose("")

	assert.Equal(t, "Por confirmar", fields.TenantName)
	assert.Empty(t, fields.TenantDocumentID)
	assert.Nil(t, fields.RentAmount)
	assert.Equal(t, 5, fields.DueDayOfMonth)
	assert.Equal(t, extract.GuaranteeOther, fields.GuaranteeType)
}
