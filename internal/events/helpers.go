package events

import (
	"encoding/json"
	"fmt"
)

// SetInterestResolvedData sets the Data field with InterestResolvedData in a type-safe way.
func (e *RegistryEvent) SetInterestResolvedData(data InterestResolvedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert InterestResolvedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetInterestResolvedData retrieves InterestResolvedData from the Data field.
func (e *RegistryEvent) GetInterestResolvedData() (*InterestResolvedData, error) {
	var data InterestResolvedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse InterestResolvedData: %w", err)
	}
	return &data, nil
}

// SetPredicateFailedData sets the Data field with PredicateFailedData in a type-safe way.
func (e *RegistryEvent) SetPredicateFailedData(data PredicateFailedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert PredicateFailedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetPredicateFailedData retrieves PredicateFailedData from the Data field.
func (e *RegistryEvent) GetPredicateFailedData() (*PredicateFailedData, error) {
	var data PredicateFailedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse PredicateFailedData: %w", err)
	}
	return &data, nil
}

// SetBuildIngestedData sets the Data field with BuildIngestedData in a type-safe way.
func (e *RegistryEvent) SetBuildIngestedData(data BuildIngestedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert BuildIngestedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetBuildIngestedData retrieves BuildIngestedData from the Data field.
func (e *RegistryEvent) GetBuildIngestedData() (*BuildIngestedData, error) {
	var data BuildIngestedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse BuildIngestedData: %w", err)
	}
	return &data, nil
}

// SetFindUnresolvedData sets the Data field with FindUnresolvedData in a type-safe way.
func (e *RegistryEvent) SetFindUnresolvedData(data FindUnresolvedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert FindUnresolvedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetFindUnresolvedData retrieves FindUnresolvedData from the Data field.
func (e *RegistryEvent) GetFindUnresolvedData() (*FindUnresolvedData, error) {
	var data FindUnresolvedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse FindUnresolvedData: %w", err)
	}
	return &data, nil
}

// SetPatchFailedData sets the Data field with PatchFailedData in a type-safe way.
func (e *RegistryEvent) SetPatchFailedData(data PatchFailedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert PatchFailedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetPatchFailedData retrieves PatchFailedData from the Data field.
func (e *RegistryEvent) GetPatchFailedData() (*PatchFailedData, error) {
	var data PatchFailedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse PatchFailedData: %w", err)
	}
	return &data, nil
}

// SetReportCompletedData sets the Data field with ReportCompletedData in a type-safe way.
func (e *RegistryEvent) SetReportCompletedData(data ReportCompletedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert ReportCompletedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetReportCompletedData retrieves ReportCompletedData from the Data field.
func (e *RegistryEvent) GetReportCompletedData() (*ReportCompletedData, error) {
	var data ReportCompletedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse ReportCompletedData: %w", err)
	}
	return &data, nil
}

// structToMap converts a struct to map[string]interface{} using JSON marshaling.
func structToMap(data interface{}) (map[string]interface{}, error) {
	bytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(bytes, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// mapToStruct converts a map[string]interface{} to a struct using JSON unmarshaling.
func mapToStruct(dataMap map[string]interface{}, target interface{}) error {
	bytes, err := json.Marshal(dataMap)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, target)
}
