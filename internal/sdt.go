package internal

import "github.com/asticode/go-astits"

type ServiceDescriptor struct {
	ServiceName  string `json:"serviceName"`
	ProviderName string `json:"providerName"`
	ServiceType  uint8  `json:"serviceType"`
}

type Service struct {
	ServiceID   uint16              `json:"serviceId"`
	Descriptors []ServiceDescriptor `json:"descriptors"`
}

type SdtInfo struct {
	Services []Service `json:"SDT"`
}

func (p *JsonPrinter) PrintSdtInfo(sdt *astits.SDTData, show bool) {
	p.Print(ToSdtInfo(sdt), show)
}

func ToSdtInfo(sdt *astits.SDTData) SdtInfo {
	info := SdtInfo{
		Services: make([]Service, 0, len(sdt.Services)),
	}
	for _, s := range sdt.Services {
		info.Services = append(info.Services, toService(s))
	}
	return info
}

func toService(s *astits.SDTDataService) Service {
	service := Service{
		ServiceID:   s.ServiceID,
		Descriptors: make([]ServiceDescriptor, 0, len(s.Descriptors)),
	}
	for _, d := range s.Descriptors {
		if d.Tag != astits.DescriptorTagService || d.Service == nil {
			continue
		}
		service.Descriptors = append(service.Descriptors, ServiceDescriptor{
			ProviderName: string(d.Service.Provider),
			ServiceName:  string(d.Service.Name),
			ServiceType:  d.Service.Type,
		})
	}
	return service
}
