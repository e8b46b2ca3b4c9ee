package services

import (
	"fmt"
	"strings"
)

type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildStructureProfilesPrompt asks the model to turn the assembled profile
// context into the JSON array shown to recruiters.
func (pb *PromptBuilder) BuildStructureProfilesPrompt(requirement, profileContext string) string {
	return fmt.Sprintf(`Estructura la información de los siguientes perfiles de desarrolladores en formato JSON.

Requerimiento del usuario: %q

Perfiles encontrados:
%s

Devuelve un arreglo JSON donde cada elemento tiene exactamente estos campos:
{
  "fullName": "<nombre completo del desarrollador>",
  "jobTitle": "<puesto o cargo>",
  "seniority": "<nivel de seniority>",
  "area": "<área o departamento>",
  "skills": ["<habilidades técnicas principales>"],
  "contractType": ["<tipos de contrato disponibles>"],
  "location": "<ubicación>",
  "office": "<oficina>",
  "email": "<email de contacto>",
  "profilePictureUrl": "<URL de la foto de perfil, vacío si no existe>",
  "similarityScore": "<porcentaje de similitud, por ejemplo 78.5%%>",
  "summary": "<resumen breve del perfil y por qué encaja>"
}

IMPORTANTE:
- Devuelve SOLO los perfiles que sean relevantes para el requerimiento
- Ordena los perfiles por relevancia (más relevante primero)
- El campo "similarityScore" debe reflejar el porcentaje de coincidencia con el requerimiento
- El campo "summary" debe explicar POR QUÉ este perfil encaja con el requerimiento específico del usuario
- Si ningún perfil es relevante devuelve []`,
		strings.TrimSpace(requirement), profileContext)
}
