package models

import "fmt"

type ListName string

const (
	RangingList      ListName = "rangingList"
	MonitorEnterList ListName = "monitorEnterList"
	MonitorExitList  ListName = "monitorExitList"
)

var listTitles = map[ListName]string{
	RangingList:      "ranging beacons in the area:",
	MonitorEnterList: "monitoring enter information:",
	MonitorExitList:  "monitoring exit information:",
}

var listOrder = []ListName{RangingList, MonitorEnterList, MonitorExitList}

func (n ListName) IsValid() bool {
	_, ok := listTitles[n]
	return ok
}

func (n ListName) Title() string {
	return listTitles[n]
}

// BeaconLists maps a list name to its observations, most recently upserted last.
// Values are treated as immutable snapshots: every change produces a new value.
type BeaconLists map[ListName][]BeaconObservation

func NewBeaconLists() BeaconLists {
	lists := make(BeaconLists, len(listOrder))
	for _, name := range listOrder {
		lists[name] = []BeaconObservation{}
	}
	return lists
}

func (l BeaconLists) Clone() BeaconLists {
	clone := make(BeaconLists, len(l))
	for name, observations := range l {
		copied := make([]BeaconObservation, len(observations))
		for i := range observations {
			copied[i] = observations[i].Clone()
		}
		clone[name] = copied
	}
	return clone
}

func (l BeaconLists) Len(name ListName) int {
	return len(l[name])
}

type SectionRow struct {
	Key    string            `json:"key"`
	Beacon BeaconObservation `json:"beacon"`
}

type Section struct {
	Key       int          `json:"key"`
	SectionID ListName     `json:"section_id"`
	Title     string       `json:"title"`
	Data      []SectionRow `json:"data"`
}

// Sections renders the lists the way list views consume them: one section per
// recognized list, in a fixed order, rows keyed by uuid and region identifier.
func (l BeaconLists) Sections() []Section {
	sections := make([]Section, 0, len(listOrder))
	for i, name := range listOrder {
		rows := make([]SectionRow, 0, len(l[name]))
		for _, observation := range l[name] {
			rows = append(rows, SectionRow{
				Key:    rowKey(observation),
				Beacon: observation,
			})
		}
		sections = append(sections, Section{
			Key:       i + 1,
			SectionID: name,
			Title:     name.Title(),
			Data:      rows,
		})
	}
	return sections
}

func rowKey(o BeaconObservation) string {
	uuid := o.UUID
	if uuid == "" {
		uuid = "NONE"
	}
	identifier := o.Identifier
	if identifier == "" {
		identifier = "NONE"
	}
	return fmt.Sprintf("%s-%s", uuid, identifier)
}
