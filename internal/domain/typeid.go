package domain

import "strconv"

// TypeID is the ASDU type identification. It is the category the
// aggregation table keys on.
type TypeID uint8

// Type identifications used by the pipeline and the simulated station.
const (
	M_SP_NA_1 TypeID = 1   // single-point information
	M_DP_NA_1 TypeID = 3   // double-point information
	M_ME_NA_1 TypeID = 9   // measured value, normalized
	M_ME_NB_1 TypeID = 11  // measured value, scaled
	M_ME_NC_1 TypeID = 13  // measured value, short float
	M_SP_TB_1 TypeID = 30  // single-point with CP56Time2a
	M_ME_TE_1 TypeID = 35  // scaled measured value with CP56Time2a
	C_SC_NA_1 TypeID = 45  // single command
	C_SE_NB_1 TypeID = 49  // set-point command, scaled value
	M_EI_NA_1 TypeID = 70  // end of initialization
	C_IC_NA_1 TypeID = 100 // interrogation command
	C_TS_TA_1 TypeID = 107 // test command with CP56Time2a
)

var typeNames = map[TypeID]string{
	1: "M_SP_NA_1", 2: "M_SP_TA_1", 3: "M_DP_NA_1", 4: "M_DP_TA_1",
	5: "M_ST_NA_1", 6: "M_ST_TA_1", 7: "M_BO_NA_1", 8: "M_BO_TA_1",
	9: "M_ME_NA_1", 10: "M_ME_TA_1", 11: "M_ME_NB_1", 12: "M_ME_TB_1",
	13: "M_ME_NC_1", 14: "M_ME_TC_1", 15: "M_IT_NA_1", 16: "M_IT_TA_1",
	17: "M_EP_TA_1", 18: "M_EP_TB_1", 19: "M_EP_TC_1", 20: "M_PS_NA_1",
	21: "M_ME_ND_1",
	30: "M_SP_TB_1", 31: "M_DP_TB_1", 32: "M_ST_TB_1", 33: "M_BO_TB_1",
	34: "M_ME_TD_1", 35: "M_ME_TE_1", 36: "M_ME_TF_1", 37: "M_IT_TB_1",
	38: "M_EP_TD_1", 39: "M_EP_TE_1", 40: "M_EP_TF_1",
	45: "C_SC_NA_1", 46: "C_DC_NA_1", 47: "C_RC_NA_1", 48: "C_SE_NA_1",
	49: "C_SE_NB_1", 50: "C_SE_NC_1", 51: "C_BO_NA_1",
	58: "C_SC_TA_1", 59: "C_DC_TA_1", 60: "C_RC_TA_1", 61: "C_SE_TA_1",
	62: "C_SE_TB_1", 63: "C_SE_TC_1", 64: "C_BO_TA_1",
	70: "M_EI_NA_1",
	100: "C_IC_NA_1", 101: "C_CI_NA_1", 102: "C_RD_NA_1", 103: "C_CS_NA_1",
	104: "C_TS_NA_1", 105: "C_RP_NA_1", 106: "C_CD_NA_1", 107: "C_TS_TA_1",
	110: "P_ME_NA_1", 111: "P_ME_NB_1", 112: "P_ME_NC_1", 113: "P_AC_NA_1",
	120: "F_FR_NA_1", 121: "F_SR_NA_1", 122: "F_SC_NA_1", 123: "F_LS_NA_1",
	124: "F_AF_NA_1", 125: "F_SG_NA_1", 126: "F_DR_TA_1", 127: "F_SC_NB_1",
}

// String returns the IEC mnemonic, or TYPE_<n> for unassigned identifiers.
func (t TypeID) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "TYPE_" + strconv.Itoa(int(t))
}

// Label returns the mnemonic followed by the numeric identifier, e.g. M_ME_NB_1(11).
func (t TypeID) Label() string {
	return t.String() + "(" + strconv.Itoa(int(t)) + ")"
}

// CauseOfTransmission is the COT field of an ASDU.
type CauseOfTransmission uint8

// Causes of transmission.
const (
	CausePeriodic              CauseOfTransmission = 1
	CauseBackground            CauseOfTransmission = 2
	CauseSpontaneous           CauseOfTransmission = 3
	CauseInitialized           CauseOfTransmission = 4
	CauseRequest               CauseOfTransmission = 5
	CauseActivation            CauseOfTransmission = 6
	CauseActivationCon         CauseOfTransmission = 7
	CauseDeactivation          CauseOfTransmission = 8
	CauseDeactivationCon       CauseOfTransmission = 9
	CauseActivationTermination CauseOfTransmission = 10
	CauseInterrogatedByStation CauseOfTransmission = 20
	CauseUnknownTypeID         CauseOfTransmission = 44
	CauseUnknownCOT            CauseOfTransmission = 45
	CauseUnknownCA             CauseOfTransmission = 46
	CauseUnknownIOA            CauseOfTransmission = 47
)

var causeNames = map[CauseOfTransmission]string{
	CausePeriodic:              "PERIODIC",
	CauseBackground:            "BACKGROUND_SCAN",
	CauseSpontaneous:           "SPONTANEOUS",
	CauseInitialized:           "INITIALIZED",
	CauseRequest:               "REQUEST",
	CauseActivation:            "ACTIVATION",
	CauseActivationCon:         "ACTIVATION_CON",
	CauseDeactivation:          "DEACTIVATION",
	CauseDeactivationCon:       "DEACTIVATION_CON",
	CauseActivationTermination: "ACTIVATION_TERMINATION",
	CauseInterrogatedByStation: "INTERROGATED_BY_STATION",
	CauseUnknownTypeID:         "UNKNOWN_TYPE_ID",
	CauseUnknownCOT:            "UNKNOWN_CAUSE_OF_TRANSMISSION",
	CauseUnknownCA:             "UNKNOWN_COMMON_ADDRESS",
	CauseUnknownIOA:            "UNKNOWN_INFORMATION_OBJECT_ADDRESS",
}

func (c CauseOfTransmission) String() string {
	if name, ok := causeNames[c]; ok {
		return name
	}
	return "COT_" + strconv.Itoa(int(c))
}

// QOIStation is the qualifier of interrogation for a general (station) interrogation.
const QOIStation = 20
